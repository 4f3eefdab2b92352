package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notary/internal/content"
)

// fakeKubo implements the subset of the Kubo RPC API used by Client.
type fakeKubo struct {
	mu     sync.Mutex
	blocks map[string][]byte
	fail   bool
}

func newFakeKubo() *fakeKubo {
	return &fakeKubo{blocks: make(map[string][]byte)}
}

func (f *fakeKubo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"Message":"node offline","Code":0,"Type":"error"}`, http.StatusInternalServerError)
		return
	}
	switch r.URL.Path {
	case "/api/v0/block/put":
		if r.URL.Query().Get("cid-codec") != "raw" {
			http.Error(w, `{"Message":"unexpected codec"}`, http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("data")
		if err != nil {
			http.Error(w, `{"Message":"missing data"}`, http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		id, _ := content.ComputeCID(data)
		f.blocks[id.String()] = data
		_ = json.NewEncoder(w).Encode(putResponse{Key: id.String(), Size: len(data)})
	case "/api/v0/block/get", "/api/v0/block/stat":
		data, ok := f.blocks[r.URL.Query().Get("arg")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(apiError{Message: "block was not found locally (offline): ipld: could not find node", Type: "error"})
			return
		}
		if r.URL.Path == "/api/v0/block/stat" {
			_ = json.NewEncoder(w).Encode(map[string]any{"Key": r.URL.Query().Get("arg"), "Size": len(data)})
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func TestClientRoundTrip(t *testing.T) {
	fake := newFakeKubo()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := context.Background()

	id, err := c.Put(ctx, []byte("kubo payload"))
	require.NoError(t, err)

	want, _ := content.ComputeCID([]byte("kubo payload"))
	assert.True(t, want.Equals(id))

	has, err := c.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, has)

	data, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("kubo payload"), data)
}

func TestClientMissingBlock(t *testing.T) {
	srv := httptest.NewServer(newFakeKubo())
	defer srv.Close()

	c := New(srv.URL, time.Second)
	id, _ := content.ComputeCID([]byte("never stored"))

	_, err := c.Get(context.Background(), id)
	assert.ErrorIs(t, err, content.ErrNotFound)

	has, err := c.Has(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestClientNodeFailureIsTransient(t *testing.T) {
	fake := newFakeKubo()
	fake.fail = true
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Put(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, content.ErrUnavailable)
}

func TestClientUnreachableNode(t *testing.T) {
	srv := httptest.NewServer(newFakeKubo())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).Put(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, content.ErrUnavailable)
}

func TestClientDetectsCorruptBlock(t *testing.T) {
	fake := newFakeKubo()
	id, _ := content.ComputeCID([]byte("original"))
	fake.blocks[id.String()] = []byte("tampered")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Get(context.Background(), id)
	assert.ErrorIs(t, err, content.ErrCIDMismatch)
}

func TestClientRejectsUndefinedCID(t *testing.T) {
	_, err := New("http://127.0.0.1:1", time.Second).Get(context.Background(), cid.Undef)
	assert.ErrorIs(t, err, content.ErrInvalidCID)
}
