// Package store persists notarization submissions and receipts.
package store

import (
	"context"
	"sync"

	"notary/internal/notarization/models"
	id "notary/pkg/domain"
	"notary/pkg/platform/sentinel"
)

type key struct {
	accountID   id.AccountID
	contentHash string
}

// InMemoryStore is a process-local store. Writes made inside RunInTx are
// undone when fn fails.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[key]models.Submission
	receipts    map[key]models.Receipt
}

type journalKey struct{}

// journal collects undo steps for writes made inside RunInTx. Steps run with
// s.mu held.
type journal struct {
	undo []func()
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		submissions: make(map[key]models.Submission),
		receipts:    make(map[key]models.Receipt),
	}
}

func (s *InMemoryStore) FindSubmission(_ context.Context, accountID id.AccountID, contentHash string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[key{accountID, contentHash}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sub, nil
}

func (s *InMemoryStore) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{sub.AccountID, sub.ContentHash}
	existing, ok := s.submissions[k]
	if ok && existing.Status == models.SubmissionAccepted && sub.Status != models.SubmissionAccepted {
		return sentinel.ErrInvalidState
	}
	if j := journalFrom(ctx); j != nil {
		j.undo = append(j.undo, func() {
			if ok {
				s.submissions[k] = existing
			} else {
				delete(s.submissions, k)
			}
		})
	}
	s.submissions[k] = *sub
	return nil
}

func (s *InMemoryStore) InsertReceipt(ctx context.Context, r *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{r.AccountID, r.ContentHash}
	if _, ok := s.receipts[k]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.receipts {
		if existing.TxID == r.TxID {
			return sentinel.ErrConflict
		}
	}
	if j := journalFrom(ctx); j != nil {
		j.undo = append(j.undo, func() { delete(s.receipts, k) })
	}
	s.receipts[k] = *r
	return nil
}

func (s *InMemoryStore) FindReceipt(_ context.Context, accountID id.AccountID, contentHash string) (*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[key{accountID, contentHash}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) FindReceiptByTx(_ context.Context, accountID id.AccountID, txID string) (*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, r := range s.receipts {
		if k.accountID == accountID && r.TxID == txID {
			return &r, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// RunInTx undoes this store's writes made by fn when fn fails. Nested calls
// join the outer unit.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Len returns the number of stored receipts.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.receipts)
}
