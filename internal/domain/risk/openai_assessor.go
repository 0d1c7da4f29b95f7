package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"voicegate-server-go/internal/platform/errors"
)

const assessorSystemPrompt = `You are a risk analyst for a voice authentication system.
Given a similarity score, an acceptance threshold and the device context, judge the
contextual risk of accepting the login. Respond with a single JSON object and nothing
else, in this exact shape:
{"confidence": <float 0..1>, "risk_level": "LOW"|"MEDIUM"|"HIGH", "recommendation": "ACCEPT"|"REJECT"|"REVIEW", "reasoning": "<short explanation>"}`

// OpenAIAssessor asks an OpenAI-compatible chat model for a risk verdict.
type OpenAIAssessor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIAssessor builds an LLM-backed assessor.
func NewOpenAIAssessor(cfg OpenAIConfig, timeout time.Duration) *OpenAIAssessor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.ModelName
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIAssessor{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}
}

func (a *OpenAIAssessor) Assess(ctx context.Context, input Input) (*Assessment, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"similarity_score=%.4f threshold=%.4f user_id=%s device_trust_level=%s is_new_device=%t",
		input.SimilarityScore, input.Threshold, input.UserID, input.DeviceTrustLevel, input.IsNewDevice,
	)

	resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assessorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindAdvisory, "advisory.openai", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.KindAdvisory, "advisory.openai", "empty completion response")
	}

	assessment, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, errors.Wrap(errors.KindAdvisory, "advisory.openai", "invalid model verdict", err)
	}
	return assessment, nil
}

// parseVerdict extracts the JSON object from the model output, tolerating
// markdown code fences around it.
func parseVerdict(content string) (*Assessment, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(content), &assessment); err != nil {
		return nil, fmt.Errorf("malformed verdict: %w", err)
	}
	if err := assessment.Validate(); err != nil {
		return nil, err
	}
	return &assessment, nil
}
