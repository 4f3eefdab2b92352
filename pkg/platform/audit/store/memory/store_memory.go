package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/sentinel"
)

// InMemoryStore keeps entries and a simulated outbox in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	entries   map[id.AccountID][]audit.Entry
	outbox    []audit.OutboxRecord
	published map[string]bool
	failWith  error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries:   make(map[id.AccountID][]audit.Entry),
		published: make(map[string]bool),
	}
}

// FailWith makes subsequent appends return err; nil restores normal writes.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[id.AccountID][]audit.Entry)
	s.outbox = nil
	s.published = make(map[string]bool)
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	body, err := audit.OutboxPayload(entry)
	if err != nil {
		return err
	}
	s.entries[entry.AccountID] = append(s.entries[entry.AccountID], entry)
	s.outbox = append(s.outbox, audit.OutboxRecord{
		ID:        uuid.NewString(),
		Key:       entry.AccountID.String(),
		EventType: string(entry.Action),
		Payload:   body,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.entries[accountID]
	out := make([]audit.Entry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

func (s *InMemoryStore) FindNotarization(_ context.Context, accountID id.AccountID, contentHash string) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries[accountID] {
		if e.ContentHash == contentHash && e.Outcome == audit.OutcomeSuccess && e.Action.IsNotarization() {
			entry := e
			return &entry, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Pending(_ context.Context, limit int) ([]audit.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxRecord
	for _, rec := range s.outbox {
		if s.published[rec.ID] {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rowID := range ids {
		s.published[rowID] = true
	}
	return nil
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
