package eventbus

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"voicegate-server-go/internal/platform/logging"
	"voicegate-server-go/internal/platform/storage"
)

// AuditSubscriber listens on all auth topics and persists one audit row per
// event. Persistence failures are logged and dropped; the audit trail never
// blocks or fails an authentication decision.
type AuditSubscriber struct {
	db     *gorm.DB
	logger *logging.Logger
}

// NewAuditSubscriber creates an audit subscriber writing to the given database.
func NewAuditSubscriber(db *gorm.DB, logger *logging.Logger) *AuditSubscriber {
	return &AuditSubscriber{db: db, logger: logger}
}

// Attach subscribes the audit handler to every auth topic on the bus.
func (s *AuditSubscriber) Attach(bus *Bus) error {
	topics := []string{
		TopicAuthAccepted,
		TopicAuthRejected,
		TopicBindingRevoked,
		TopicBindingRebound,
	}
	for _, topic := range topics {
		topic := topic
		handler := func(event AuthEvent) {
			s.record(topic, event)
		}
		if err := bus.SubscribeAsync(topic, handler, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuditSubscriber) record(topic string, event AuthEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	s.logger.InfoTag("AUDIT", "%s user=%s device=%s outcome=%s reason=%s",
		topic, event.UserID, event.DeviceID, event.Outcome, event.ReasonCode)

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorTag("AUDIT", "failed to encode audit event: %v", err)
		return
	}

	record := storage.AuthEventRecord{
		EventID:   event.EventID,
		EventType: topic,
		UserID:    event.UserID,
		DeviceID:  event.DeviceID,
		Data:      data,
		CreatedAt: event.OccurredAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.ErrorTag("AUDIT", "failed to persist audit event %s: %v", event.EventID, err)
	}
}
