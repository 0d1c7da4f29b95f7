package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voicegate-server-go/internal/domain/binding/aggregate"
	"voicegate-server-go/internal/domain/binding/repository"
	"voicegate-server-go/internal/domain/voiceprint"
	platformerrors "voicegate-server-go/internal/platform/errors"
)

const defaultRedisPrefix = "voicegate:binding:"

type redisStore struct {
	client *redis.Client
	prefix string
}

// redisRecord is the JSON document stored per binding key.
type redisRecord struct {
	UserID         string               `json:"user_id"`
	DeviceID       string               `json:"device_id"`
	Fingerprint    string               `json:"fingerprint"`
	TrustLevel     string               `json:"trust_level"`
	Signature      voiceprint.Embedding `json:"signature,omitempty"`
	BoundAt        time.Time            `json:"bound_at"`
	LastVerifiedAt time.Time            `json:"last_verified_at"`
	RevokedAt      *time.Time           `json:"revoked_at,omitempty"`
	Version        int64                `json:"version"`
}

// NewRedis builds a Redis-backed binding store. Writes use optimistic
// WATCH transactions so the Version check stays atomic across clients.
func NewRedis(cfg Config) (repository.BindingRepository, error) {
	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis driver requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "binding.redis", "failed to connect to redis", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(userID, deviceID string) string {
	return s.prefix + userID + ":" + deviceID
}

func (s *redisStore) userIndexKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *redisStore) Find(ctx context.Context, userID, deviceID string) (*aggregate.DeviceBinding, error) {
	data, err := s.client.Get(ctx, s.key(userID, deviceID)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "binding.find", "failed to read binding", err)
	}
	return decodeRecord(data)
}

func (s *redisStore) Create(ctx context.Context, binding *aggregate.DeviceBinding) error {
	binding.Version = 1
	data, err := encodeRecord(binding)
	if err != nil {
		return err
	}

	key := s.key(binding.UserID, binding.DeviceID)
	ok, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "binding.create", "failed to create binding", err)
	}
	if !ok {
		return platformerrors.Wrap(platformerrors.KindStorage, "binding.create", "binding already exists", repository.ErrConflict)
	}
	if err := s.client.SAdd(ctx, s.userIndexKey(binding.UserID), binding.DeviceID).Err(); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "binding.create", "failed to index binding", err)
	}
	return nil
}

func (s *redisStore) Update(ctx context.Context, binding *aggregate.DeviceBinding) error {
	key := s.key(binding.UserID, binding.DeviceID)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if stderrors.Is(err, redis.Nil) {
				return repository.ErrNotFound
			}
			return err
		}
		current, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if current.Version != binding.Version {
			return repository.ErrConflict
		}

		next := binding.Clone()
		next.Version = binding.Version + 1
		encoded, err := encodeRecord(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	switch {
	case err == nil:
		binding.Version++
		return nil
	case stderrors.Is(err, repository.ErrNotFound):
		return platformerrors.Wrap(platformerrors.KindStorage, "binding.update", "binding missing", err)
	case stderrors.Is(err, repository.ErrConflict), stderrors.Is(err, redis.TxFailedErr):
		// A concurrent write invalidated the watched key.
		return platformerrors.Wrap(platformerrors.KindStorage, "binding.update", "stale binding version", repository.ErrConflict)
	default:
		return platformerrors.Wrap(platformerrors.KindStorage, "binding.update", "failed to update binding", err)
	}
}

func (s *redisStore) ListByUser(ctx context.Context, userID string) ([]*aggregate.DeviceBinding, error) {
	deviceIDs, err := s.client.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "binding.list_by_user", "failed to list bindings", err)
	}

	bindings := make([]*aggregate.DeviceBinding, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		binding, err := s.Find(ctx, userID, deviceID)
		if err != nil {
			return nil, err
		}
		if binding != nil {
			bindings = append(bindings, binding)
		}
	}
	return bindings, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}

func encodeRecord(binding *aggregate.DeviceBinding) ([]byte, error) {
	record := redisRecord{
		UserID:         binding.UserID,
		DeviceID:       binding.DeviceID,
		Fingerprint:    binding.Fingerprint,
		TrustLevel:     string(binding.TrustLevel),
		Signature:      binding.Signature,
		BoundAt:        binding.BoundAt,
		LastVerifiedAt: binding.LastVerifiedAt,
		RevokedAt:      binding.RevokedAt,
		Version:        binding.Version,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "binding.marshal", "failed to encode binding", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*aggregate.DeviceBinding, error) {
	var record redisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "binding.unmarshal", "failed to decode binding", err)
	}
	return &aggregate.DeviceBinding{
		UserID:         record.UserID,
		DeviceID:       record.DeviceID,
		Fingerprint:    record.Fingerprint,
		TrustLevel:     aggregate.TrustLevel(record.TrustLevel),
		Signature:      record.Signature,
		BoundAt:        record.BoundAt,
		LastVerifiedAt: record.LastVerifiedAt,
		RevokedAt:      record.RevokedAt,
		Version:        record.Version,
	}, nil
}
