package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notary/internal/billing/store"
	"notary/internal/registry"
	id "notary/pkg/domain"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/secrets"
)

func newBox(t *testing.T) *secrets.Box {
	t.Helper()
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	box, err := secrets.NewBox(key)
	require.NoError(t, err)
	return box
}

func TestProvisionerOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an account with a sealed ledger key", func(t *testing.T) {
		box := newBox(t)
		issue := func() (string, []byte, error) {
			sub, err := registry.NewSubmitter(box)
			return sub.Address, sub.SealedKey, err
		}
		p := NewProvisioner(store.NewInMemory(), issue, nil)
		accountID := id.NewAccountID()

		acct, created, err := p.Open(ctx, accountID)
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, acct.IsActive())
		assert.True(t, acct.NativeBalance.IsZero())
		assert.True(t, strings.HasPrefix(acct.ChainAddress, "N"))

		wif, err := box.Open(acct.EncryptedSigningKey, []byte(acct.ChainAddress))
		require.NoError(t, err)
		assert.NotEmpty(t, wif)

		_, err = box.Open(acct.EncryptedSigningKey, []byte("Nsomeoneelse"))
		assert.Error(t, err)
	})

	t.Run("second open returns the same account", func(t *testing.T) {
		var issued atomic.Int32
		issue := func() (string, []byte, error) {
			n := issued.Add(1)
			return "Naddr" + string(rune('0'+n)), []byte("sealed"), nil
		}
		p := NewProvisioner(store.NewInMemory(), issue, nil)
		accountID := id.NewAccountID()

		first, _, err := p.Open(ctx, accountID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				acct, created, err := p.Open(ctx, accountID)
				assert.NoError(t, err)
				assert.False(t, created)
				assert.Equal(t, first.ChainAddress, acct.ChainAddress)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), issued.Load())
	})

	t.Run("issuer failure", func(t *testing.T) {
		p := NewProvisioner(store.NewInMemory(), func() (string, []byte, error) {
			return "", nil, errors.New("entropy exhausted")
		}, nil)
		_, _, err := p.Open(ctx, id.NewAccountID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("nil account", func(t *testing.T) {
		p := NewProvisioner(store.NewInMemory(), nil, nil)
		_, _, err := p.Open(ctx, id.AccountID{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
