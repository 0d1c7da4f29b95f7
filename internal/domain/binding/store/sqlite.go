package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"voicegate-server-go/internal/domain/binding/aggregate"
	"voicegate-server-go/internal/domain/binding/repository"
	"voicegate-server-go/internal/domain/voiceprint"
	"voicegate-server-go/internal/platform/errors"
	"voicegate-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a SQLite-backed binding store.
func NewSQLite(db *gorm.DB) (repository.BindingRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Find(ctx context.Context, userID, deviceID string) (*aggregate.DeviceBinding, error) {
	var record storage.DeviceBindingRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		First(&record).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "binding.find", "failed to find binding", err)
	}
	return fromRecord(&record)
}

func (s *sqliteStore) Create(ctx context.Context, binding *aggregate.DeviceBinding) error {
	binding.Version = 1
	record, err := toRecord(binding)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		// The unique (user_id, device_id) index turns a duplicate create
		// into a conflict for the orchestrator's retry path.
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrap(errors.KindStorage, "binding.create", "binding already exists", repository.ErrConflict)
		}
		return errors.Wrap(errors.KindStorage, "binding.create", "failed to create binding", err)
	}
	return nil
}

func (s *sqliteStore) Update(ctx context.Context, binding *aggregate.DeviceBinding) error {
	sig, err := marshalSignature(binding.Signature)
	if err != nil {
		return err
	}

	values := map[string]interface{}{
		"fingerprint":      binding.Fingerprint,
		"trust_level":      string(binding.TrustLevel),
		"signature":        sig,
		"bound_at":         binding.BoundAt,
		"last_verified_at": binding.LastVerifiedAt,
		"revoked_at":       binding.RevokedAt,
		"version":          binding.Version + 1,
		"updated_at":       time.Now(),
	}

	result := s.db.WithContext(ctx).
		Model(&storage.DeviceBindingRecord{}).
		Where("user_id = ? AND device_id = ? AND version = ?",
			binding.UserID, binding.DeviceID, binding.Version).
		Updates(values)
	if result.Error != nil {
		return errors.Wrap(errors.KindStorage, "binding.update", "failed to update binding", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the row is gone or another writer won the race.
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&storage.DeviceBindingRecord{}).
			Where("user_id = ? AND device_id = ?", binding.UserID, binding.DeviceID).
			Count(&count).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "binding.update", "failed to check binding", err)
		}
		if count == 0 {
			return errors.Wrap(errors.KindStorage, "binding.update", "binding missing", repository.ErrNotFound)
		}
		return errors.Wrap(errors.KindStorage, "binding.update", "stale binding version", repository.ErrConflict)
	}

	binding.Version++
	return nil
}

func (s *sqliteStore) ListByUser(ctx context.Context, userID string) ([]*aggregate.DeviceBinding, error) {
	var records []storage.DeviceBindingRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "binding.list_by_user", "failed to list bindings", err)
	}

	bindings := make([]*aggregate.DeviceBinding, 0, len(records))
	for i := range records {
		binding, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, binding)
	}
	return bindings, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func marshalSignature(sig voiceprint.Embedding) ([]byte, error) {
	if len(sig) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "binding.marshal", "failed to encode signature", err)
	}
	return data, nil
}

func toRecord(binding *aggregate.DeviceBinding) (*storage.DeviceBindingRecord, error) {
	sig, err := marshalSignature(binding.Signature)
	if err != nil {
		return nil, err
	}
	return &storage.DeviceBindingRecord{
		UserID:         binding.UserID,
		DeviceID:       binding.DeviceID,
		Fingerprint:    binding.Fingerprint,
		TrustLevel:     string(binding.TrustLevel),
		Signature:      sig,
		BoundAt:        binding.BoundAt,
		LastVerifiedAt: binding.LastVerifiedAt,
		RevokedAt:      binding.RevokedAt,
		Version:        binding.Version,
	}, nil
}

func fromRecord(record *storage.DeviceBindingRecord) (*aggregate.DeviceBinding, error) {
	binding := &aggregate.DeviceBinding{
		UserID:         record.UserID,
		DeviceID:       record.DeviceID,
		Fingerprint:    record.Fingerprint,
		TrustLevel:     aggregate.TrustLevel(record.TrustLevel),
		BoundAt:        record.BoundAt,
		LastVerifiedAt: record.LastVerifiedAt,
		RevokedAt:      record.RevokedAt,
		Version:        record.Version,
	}
	if len(record.Signature) > 0 {
		var sig voiceprint.Embedding
		if err := json.Unmarshal(record.Signature, &sig); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "binding.unmarshal", "failed to decode signature", err)
		}
		binding.Signature = sig
	}
	return binding, nil
}
