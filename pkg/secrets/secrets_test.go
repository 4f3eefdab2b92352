package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "notary/pkg/domain-errors"
)

func newBox(t *testing.T) *Box {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	box, err := NewBox(key)
	require.NoError(t, err)
	return box
}

func TestSealOpen(t *testing.T) {
	box := newBox(t)
	owner := []byte("NQmoWJp4xJ3vNz8PzcKiK2dfGbAhUcGX1p")

	sealed, err := box.Seal([]byte("KxDgvEKzgSBPPfuVfw67oPQBSjidEiqTHURKSDL1R7yGaGYAeYnr"), owner)
	require.NoError(t, err)

	plain, err := box.Open(sealed, owner)
	require.NoError(t, err)
	assert.Equal(t, "KxDgvEKzgSBPPfuVfw67oPQBSjidEiqTHURKSDL1R7yGaGYAeYnr", string(plain))

	t.Run("different owner fails", func(t *testing.T) {
		_, err := box.Open(sealed, []byte("someone else"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("different key fails", func(t *testing.T) {
		_, err := newBox(t).Open(sealed, owner)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("truncated input fails", func(t *testing.T) {
		_, err := box.Open(sealed[:10], owner)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestNewBox_RejectsBadKeys(t *testing.T) {
	_, err := NewBox("not base64!")
	assert.Error(t, err)

	_, err = NewBox("c2hvcnQ=")
	assert.Error(t, err)
}

func TestSeal_RejectsEmpty(t *testing.T) {
	_, err := newBox(t).Seal(nil, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
