package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
	id "notary/pkg/domain"
	"notary/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in process memory with one mutex per account.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
	locks    map[id.AccountID]*sync.Mutex
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.AccountID]*models.Account),
		locks:    make(map[id.AccountID]*sync.Mutex),
	}
}

func (s *InMemoryStore) Create(_ context.Context, acct *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.accounts {
		if existing.ChainAddress == acct.ChainAddress {
			return sentinel.ErrConflict
		}
	}
	s.accounts[acct.ID] = acct.Clone()
	s.locks[acct.ID] = &sync.Mutex{}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *InMemoryStore) UpdateBalances(ctx context.Context, accountID id.AccountID, fn BalanceFunc) (*models.Account, error) {
	lock, err := s.lockFor(accountID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current := s.accounts[accountID].Clone()
	s.mu.RUnlock()

	if err := fn(ctx, current); err != nil {
		return nil, err
	}
	current.UpdatedAt = time.Now()

	s.mu.Lock()
	s.accounts[accountID] = current.Clone()
	s.mu.Unlock()
	return current, nil
}

// WithdrawIfSufficient subtracts amount from the native balance only when the
// balance covers it.
func (s *InMemoryStore) WithdrawIfSufficient(_ context.Context, accountID id.AccountID, amount decimal.Decimal) (bool, error) {
	lock, err := s.lockFor(accountID)
	if err != nil {
		return false, err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accounts[accountID]
	if !acct.Covers(amount) {
		return false, nil
	}
	acct.NativeBalance = acct.NativeBalance.Sub(amount)
	acct.UpdatedAt = time.Now()
	return true, nil
}

func (s *InMemoryStore) Deposit(_ context.Context, accountID id.AccountID, amount decimal.Decimal) error {
	lock, err := s.lockFor(accountID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accounts[accountID]
	acct.NativeBalance = acct.NativeBalance.Add(amount)
	acct.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) lockFor(accountID id.AccountID) (*sync.Mutex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lock, ok := s.locks[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return lock, nil
}
