//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	id "notary/pkg/domain"
	audit "notary/pkg/platform/audit"
	auditpostgres "notary/pkg/platform/audit/store/postgres"
	"notary/pkg/testutil/containers"
)

func TestWorkerPublishesOutboxToRedpanda(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := containers.GetManager().GetPostgres(t)
	broker := containers.GetManager().GetRedpanda(t)
	require.NoError(t, pg.TruncateTables(ctx, "audit_entries", "audit_outbox"))

	const topic = "notary.audit.compliance"
	client, err := kgo.NewClient(kgo.SeedBrokers(broker.Brokers...))
	require.NoError(t, err)
	defer client.Close()

	admin := kadm.NewClient(client)
	created, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	require.NoError(t, err)
	for _, res := range created {
		require.NoError(t, res.Err)
	}

	store := auditpostgres.New(pg.DB)
	account := id.NewAccountID()
	for _, action := range []audit.ActionKind{audit.ActionAddBalance, audit.ActionRegisterContent} {
		require.NoError(t, store.Append(ctx, audit.Entry{
			ID:          id.NewEntryID(),
			AccountID:   account,
			Action:      action,
			Outcome:     audit.OutcomeSuccess,
			ContentHash: "0xabc",
			Timestamp:   time.Now().UTC(),
		}))
	}

	w := NewWorker(store, client, topic, WithBatchSize(10))
	published, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, published)

	again, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}

	var first map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &first))
	assert.Equal(t, account.String(), string(records[0].Key))
	assert.Equal(t, "add_balance", first["action"])
	assert.Equal(t, "register_content", headerValue(records[1], "event_type"))
}

func headerValue(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
