package risk

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"voicegate-server-go/internal/platform/errors"
)

// HTTPClient speaks the JSON advisory contract over HTTP.
type HTTPClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient builds an HTTP assessor. apiKey may be empty for
// unauthenticated endpoints.
func NewHTTPClient(url, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type assessRequest struct {
	SimilarityScore float64     `json:"similarity_score"`
	Threshold       float64     `json:"threshold"`
	UserContext     userContext `json:"user_context"`
}

type userContext struct {
	UserID           string `json:"user_id"`
	DeviceTrustLevel string `json:"device_trust_level"`
	IsNewDevice      bool   `json:"is_new_device"`
}

// Assess posts the attempt context to the advisory endpoint. A single retry
// covers transient transport failures, but a timeout ends the attempt
// immediately so one slow call cannot consume the budget twice.
func (c *HTTPClient) Assess(ctx context.Context, input Input) (*Assessment, error) {
	body, err := json.Marshal(assessRequest{
		SimilarityScore: input.SimilarityScore,
		Threshold:       input.Threshold,
		UserContext: userContext{
			UserID:           input.UserID,
			DeviceTrustLevel: input.DeviceTrustLevel,
			IsNewDevice:      input.IsNewDevice,
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindAdvisory, "advisory.assess", "failed to encode request", err)
	}

	assessment, err := c.post(ctx, body)
	if err == nil {
		return assessment, nil
	}
	if isTimeout(err) {
		return nil, errors.Wrap(errors.KindAdvisory, "advisory.assess", "advisory call timed out", err)
	}

	assessment, retryErr := c.post(ctx, body)
	if retryErr != nil {
		return nil, errors.Wrap(errors.KindAdvisory, "advisory.assess", "advisory call failed", retryErr)
	}
	return assessment, nil
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (*Assessment, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var assessment Assessment
	if err := json.Unmarshal(data, &assessment); err != nil {
		return nil, fmt.Errorf("malformed advisory response: %w", err)
	}
	if err := assessment.Validate(); err != nil {
		return nil, fmt.Errorf("invalid advisory response: %w", err)
	}
	return &assessment, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
