package storage

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is the in-process KV implementation. Used for tests and
// storage-free deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	lists map[string][][]byte
	locks map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string][]byte),
		lists: make(map[string][][]byte),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.kv[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.kv[key] = stored
	return nil
}

// Update serializes read-modify-write cycles per key; updates to different
// keys proceed in parallel.
func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.kv[key]
	s.mu.RUnlock()

	var snapshot []byte
	if ok {
		snapshot = make([]byte, len(current))
		copy(snapshot, current)
	}

	next, err := fn(snapshot)
	if err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.kv[key] = next
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.lists[key] = append(s.lists[key], stored)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, key string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[key]
	out := make([][]byte, len(list))
	for i, v := range list {
		out[i] = make([]byte, len(v))
		copy(out[i], v)
	}
	return out, nil
}

func (s *MemoryStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
