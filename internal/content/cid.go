package content

import (
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ComputeCID derives the CIDv1 (raw codec, sha2-256) for data. Identical
// bytes always yield the identical CID.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// ParseCID decodes a CID string and checks it uses the expected codec.
func ParseCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, ErrInvalidCID
	}
	if c.Version() != 1 || c.Type() != cid.Raw {
		return cid.Undef, ErrInvalidCID
	}
	return c, nil
}

// Record is the immutable result of addressing submitted content.
type Record struct {
	CID       cid.Cid
	Content   []byte
	AccountID string
	CreatedAt time.Time
}
