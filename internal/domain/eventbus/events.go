package eventbus

import "time"

// Topics published by the authentication pipeline.
const (
	TopicAuthAccepted   = "auth:accepted"
	TopicAuthRejected   = "auth:rejected"
	TopicBindingRevoked = "binding:revoked"
	TopicBindingRebound = "binding:rebound"
)

// AuthEvent is the payload carried on every auth topic.
type AuthEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	DeviceID   string    `json:"device_id"`
	Outcome    string    `json:"outcome"`
	ReasonCode string    `json:"reason_code"`
	TrustLevel string    `json:"trust_level"`
	OccurredAt time.Time `json:"occurred_at"`
}
