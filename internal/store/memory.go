package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process AddressStore. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	seq       map[string]int64 // tie-break for identical timestamps
	next      int64
	now       func() time.Time
}

// NewMemoryStore creates an empty store, optionally seeded with a last-known-good address.
func NewMemoryStore(seed ...string) *MemoryStore {
	s := &MemoryStore{
		endpoints: make(map[string]*Endpoint),
		seq:       make(map[string]int64),
		now:       time.Now,
	}
	for _, addr := range seed {
		_ = s.Remember(context.Background(), addr)
	}
	return s
}

// Remember records a successful connection to address.
func (s *MemoryStore) Remember(_ context.Context, address string) error {
	if address == "" {
		return errors.New("remember: empty address")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.endpoints[address]
	if !ok {
		e = &Endpoint{Address: address, FirstConnectedAt: now}
		s.endpoints[address] = e
	}
	e.LastConnectedAt = now
	e.ConnectCount++
	s.next++
	s.seq[address] = s.next
	return nil
}

// LastKnownGood returns the most recently remembered address, or "".
func (s *MemoryStore) LastKnownGood(ctx context.Context) (string, error) {
	recent, err := s.Recent(ctx, 1)
	if err != nil || len(recent) == 0 {
		return "", err
	}
	return recent[0].Address, nil
}

// Recent lists up to n endpoints, most recently remembered first.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Endpoint, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].Address] > s.seq[out[j].Address]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
