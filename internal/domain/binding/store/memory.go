package store

import (
	"context"
	"sync"

	"voicegate-server-go/internal/domain/binding/aggregate"
	"voicegate-server-go/internal/domain/binding/repository"
	"voicegate-server-go/internal/platform/errors"
)

type memoryStore struct {
	items map[string]*aggregate.DeviceBinding
	mutex sync.RWMutex
}

// NewMemory builds an in-memory binding store, used in tests and
// single-process deployments.
func NewMemory() repository.BindingRepository {
	return &memoryStore{
		items: make(map[string]*aggregate.DeviceBinding),
	}
}

func bindingKey(userID, deviceID string) string {
	return userID + "\x00" + deviceID
}

func (s *memoryStore) Find(_ context.Context, userID, deviceID string) (*aggregate.DeviceBinding, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	binding, ok := s.items[bindingKey(userID, deviceID)]
	if !ok {
		return nil, nil
	}
	return binding.Clone(), nil
}

func (s *memoryStore) Create(_ context.Context, binding *aggregate.DeviceBinding) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := bindingKey(binding.UserID, binding.DeviceID)
	if _, exists := s.items[key]; exists {
		return errors.Wrap(errors.KindStorage, "binding.create", "binding already exists", repository.ErrConflict)
	}

	binding.Version = 1
	s.items[key] = binding.Clone()
	return nil
}

func (s *memoryStore) Update(_ context.Context, binding *aggregate.DeviceBinding) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := bindingKey(binding.UserID, binding.DeviceID)
	current, ok := s.items[key]
	if !ok {
		return errors.Wrap(errors.KindStorage, "binding.update", "binding missing", repository.ErrNotFound)
	}
	if current.Version != binding.Version {
		return errors.Wrap(errors.KindStorage, "binding.update", "stale binding version", repository.ErrConflict)
	}

	binding.Version++
	s.items[key] = binding.Clone()
	return nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string) ([]*aggregate.DeviceBinding, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	bindings := make([]*aggregate.DeviceBinding, 0)
	for _, binding := range s.items {
		if binding.UserID == userID {
			bindings = append(bindings, binding.Clone())
		}
	}
	return bindings, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
