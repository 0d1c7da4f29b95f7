package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicegate-server-go/internal/platform/logging"
	"voicegate-server-go/internal/platform/storage"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()

	var received []AuthEvent
	err := bus.Subscribe(TopicAuthAccepted, func(event AuthEvent) {
		received = append(received, event)
	})
	require.NoError(t, err)

	bus.Publish(TopicAuthAccepted, AuthEvent{UserID: "alice", Outcome: "ACCEPT"})
	require.Len(t, received, 1)
	assert.Equal(t, "alice", received[0].UserID)

	// Other topics do not reach this subscriber.
	bus.Publish(TopicAuthRejected, AuthEvent{UserID: "bob"})
	assert.Len(t, received, 1)
}

func TestBusesAreIndependent(t *testing.T) {
	first := New()
	second := New()

	var count int
	require.NoError(t, first.Subscribe(TopicAuthAccepted, func(AuthEvent) { count++ }))

	second.Publish(TopicAuthAccepted, AuthEvent{})
	assert.Zero(t, count)
}

func TestAuditSubscriberPersistsEvents(t *testing.T) {
	db, err := storage.OpenTestDB()
	require.NoError(t, err)

	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir()})
	require.NoError(t, err)
	defer logger.Close()

	bus := New()
	subscriber := NewAuditSubscriber(db, logger)
	require.NoError(t, subscriber.Attach(bus))

	bus.Publish(TopicAuthAccepted, AuthEvent{
		EventID:    "evt-1",
		UserID:     "alice",
		DeviceID:   "phone-1",
		Outcome:    "ACCEPT",
		ReasonCode: "SIMILARITY_PASS",
		OccurredAt: time.Now(),
	})
	bus.Publish(TopicBindingRevoked, AuthEvent{
		EventID:    "evt-2",
		UserID:     "alice",
		DeviceID:   "phone-1",
		Outcome:    "REVOKED",
		OccurredAt: time.Now(),
	})
	bus.WaitAsync()

	var records []storage.AuthEventRecord
	require.NoError(t, db.Order("event_id").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, TopicAuthAccepted, records[0].EventType)
	assert.Equal(t, "alice", records[0].UserID)
	assert.Equal(t, TopicBindingRevoked, records[1].EventType)
}

func TestAuditSubscriberAssignsEventID(t *testing.T) {
	db, err := storage.OpenTestDB()
	require.NoError(t, err)

	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir()})
	require.NoError(t, err)
	defer logger.Close()

	bus := New()
	subscriber := NewAuditSubscriber(db, logger)
	require.NoError(t, subscriber.Attach(bus))

	bus.Publish(TopicAuthRejected, AuthEvent{UserID: "bob", DeviceID: "tablet-1", OccurredAt: time.Now()})
	bus.WaitAsync()

	var record storage.AuthEventRecord
	require.NoError(t, db.First(&record).Error)
	assert.NotEmpty(t, record.EventID)
}
