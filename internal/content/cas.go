package content

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

var (
	ErrNotFound    = errors.New("content: not found")
	ErrInvalidCID  = errors.New("content: invalid cid")
	ErrCIDMismatch = errors.New("content: cid mismatch")
	// ErrUnavailable marks transient backend failures that may be retried.
	ErrUnavailable = errors.New("content: store unavailable")
)

// CAS is a content-addressable block store.
//
// Put must be idempotent and return the CID derived from the bytes written.
// Get must return ErrNotFound when the CID is absent.
type CAS interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}
