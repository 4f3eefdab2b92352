package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextCarriesTransaction(t *testing.T) {
	ctx := context.Background()

	_, ok := From(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, WithTx(ctx, nil), "nil transaction leaves context untouched")

	sqlTx := &sql.Tx{}
	withTx := WithTx(ctx, sqlTx)
	got, ok := From(withTx)
	assert.True(t, ok)
	assert.Same(t, sqlTx, got)

	_, ok = From(Detach(withTx))
	assert.False(t, ok, "detached context must not expose the transaction")
}
