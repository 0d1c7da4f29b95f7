package risk

import (
	"context"
	"fmt"
	"time"
)

// Level grades the contextual risk of an authentication attempt.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Recommendation is the advisory verdict on the attempt.
type Recommendation string

const (
	RecommendAccept Recommendation = "ACCEPT"
	RecommendReject Recommendation = "REJECT"
	RecommendReview Recommendation = "REVIEW"
)

// Assessment is the advisory judgment returned by an assessor. It supplements
// the similarity comparison and never replaces it.
type Assessment struct {
	Confidence     float64        `json:"confidence"`
	Level          Level          `json:"risk_level"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
}

// Validate rejects assessments with out-of-range or unknown fields. A
// malformed advisory response counts as no response at all.
func (a *Assessment) Validate() error {
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", a.Confidence)
	}
	switch a.Level {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		return fmt.Errorf("unknown risk level %q", a.Level)
	}
	switch a.Recommendation {
	case RecommendAccept, RecommendReject, RecommendReview:
	default:
		return fmt.Errorf("unknown recommendation %q", a.Recommendation)
	}
	return nil
}

// Input carries the attempt context sent to the advisory service.
type Input struct {
	SimilarityScore  float64
	Threshold        float64
	UserID           string
	DeviceTrustLevel string
	IsNewDevice      bool
}

// Assessor produces a best-effort risk assessment for an attempt. Errors
// mean "no assessment available"; callers fall back to the bare threshold
// comparison and must not fail the attempt.
type Assessor interface {
	Assess(ctx context.Context, input Input) (*Assessment, error)
}

// Driver identifiers supported by the advisory domain.
const (
	DriverHTTP   = "http"
	DriverOpenAI = "openai"
)

// Config selects and parameterizes the advisory backend.
type Config struct {
	Driver  string
	Timeout time.Duration
	HTTP    *HTTPConfig
	OpenAI  *OpenAIConfig
}

// HTTPConfig points at a JSON advisory endpoint.
type HTTPConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig points at an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	ModelName string
}

const defaultTimeout = 5 * time.Second

// New creates an assessor based on the provided configuration.
func New(cfg Config) (Assessor, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch cfg.Driver {
	case DriverHTTP, "":
		if cfg.HTTP == nil || cfg.HTTP.URL == "" {
			return nil, fmt.Errorf("http advisory driver requires a URL")
		}
		return NewHTTPClient(cfg.HTTP.URL, cfg.HTTP.APIKey, timeout), nil
	case DriverOpenAI:
		if cfg.OpenAI == nil || cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai advisory driver requires an API key")
		}
		return NewOpenAIAssessor(*cfg.OpenAI, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported advisory driver: %s", cfg.Driver)
	}
}
