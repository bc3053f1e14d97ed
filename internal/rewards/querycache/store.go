package querycache

import (
	"context"
	"sync"
	"time"
)

type Resource string

const (
	ResourceUserPoints     Resource = "userPoints"
	ResourceUserStreak     Resource = "userStreak"
	ResourceCanClaimToday  Resource = "canClaimToday"
	ResourceWeeklyCheckins Resource = "weeklyCheckins"
	ResourceRewards        Resource = "rewards"
	ResourceReferralStats  Resource = "referralStats"
	ResourceUserProfile    Resource = "userProfile"
)

// Key addresses one cached query. ID is empty for global resources.
type Key struct {
	Resource Resource
	ID       string
}

func (k Key) String() string {
	return string(k.Resource) + ":" + k.ID
}

type Entry struct {
	Value     []byte
	Stale     bool
	FetchedAt time.Time
}

// Generation changes every time a key or its resource is invalidated. A
// fetch records it before running and stores its result only when it is
// unchanged.
type Generation struct {
	Key      uint64
	Resource uint64
}

type Store interface {
	Get(ctx context.Context, key Key) (*Entry, bool, error)
	Generation(ctx context.Context, key Key) (Generation, error)
	// SetIfGeneration writes value only while key is still at gen. The
	// comparison and the write happen as one step.
	SetIfGeneration(ctx context.Context, key Key, value []byte, fetchedAt time.Time, gen Generation) (bool, error)
	MarkStale(ctx context.Context, keys ...Key) error
	MarkResourceStale(ctx context.Context, resource Resource) error
	Delete(ctx context.Context, keys ...Key) error
	Close() error
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	keyGen  map[Key]uint64
	resGen  map[Resource]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[Key]*Entry{},
		keyGen:  map[Key]uint64{},
		resGen:  map[Resource]uint64{},
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (s *MemoryStore) generation(key Key) Generation {
	return Generation{Key: s.keyGen[key], Resource: s.resGen[key.Resource]}
}

func (s *MemoryStore) Generation(_ context.Context, key Key) (Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation(key), nil
}

func (s *MemoryStore) SetIfGeneration(_ context.Context, key Key, value []byte, fetchedAt time.Time, gen Generation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation(key) != gen {
		return false, nil
	}
	s.entries[key] = &Entry{Value: value, FetchedAt: fetchedAt}
	return true, nil
}

// MarkStale also advances the generation of keys with no entry yet, so a
// fetch already running for them does not store its result.
func (s *MemoryStore) MarkStale(_ context.Context, keys ...Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keyGen[k]++
		if e, ok := s.entries[k]; ok {
			e.Stale = true
		}
	}
	return nil
}

func (s *MemoryStore) MarkResourceStale(_ context.Context, resource Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resGen[resource]++
	for k, e := range s.entries {
		if k.Resource == resource {
			e.Stale = true
		}
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
