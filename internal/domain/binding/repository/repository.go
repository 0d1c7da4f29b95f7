package repository

import (
	"context"
	"errors"

	"voicegate-server-go/internal/domain/binding/aggregate"
)

// ErrConflict signals a lost compare-and-swap race: the record changed
// between read and write. Callers retry once against the re-read record.
var ErrConflict = errors.New("binding version conflict")

// ErrNotFound signals that no binding row exists for the key.
var ErrNotFound = errors.New("binding not found")

// BindingRepository provides atomic access to device bindings keyed by
// (user_id, device_id). Update is a compare-and-swap guarded by the
// aggregate's Version; implementations bump Version on success.
type BindingRepository interface {
	Find(ctx context.Context, userID, deviceID string) (*aggregate.DeviceBinding, error)
	Create(ctx context.Context, binding *aggregate.DeviceBinding) error
	Update(ctx context.Context, binding *aggregate.DeviceBinding) error
	ListByUser(ctx context.Context, userID string) ([]*aggregate.DeviceBinding, error)
	Close(ctx context.Context) error
}
