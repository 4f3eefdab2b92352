package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/store/memory"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func seed(t *testing.T, store *memory.InMemoryStore, n int) id.AccountID {
	t.Helper()
	account := id.NewAccountID()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(context.Background(), audit.Entry{
			ID:        id.NewEntryID(),
			AccountID: account,
			Action:    audit.ActionRegisterContent,
			Outcome:   audit.OutcomeSuccess,
		}))
	}
	return account
}

func TestFlush_PublishesAndMarks(t *testing.T) {
	store := memory.NewInMemoryStore()
	account := seed(t, store, 3)
	producer := &fakeProducer{}
	w := NewWorker(store, producer, "notary.audit", WithBatchSize(2))

	n, err := w.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, producer.records, 3)
	for _, r := range producer.records {
		assert.Equal(t, "notary.audit", r.Topic)
		assert.Equal(t, account.String(), string(r.Key))
	}
}

func TestFlush_BrokerFailureLeavesRowsPending(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 2)
	producer := &fakeProducer{err: errors.New("broker down")}
	w := NewWorker(store, producer, "notary.audit")

	_, err := w.Flush(context.Background())
	require.Error(t, err)

	pending, err := store.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
