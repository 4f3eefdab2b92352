// Package stamp renders proof documents that carry a notarization seal.
package stamp

import (
	"fmt"
	"time"
)

// Label is the seal printed on a proof.
type Label struct {
	TransactionID string
	Timestamp     time.Time
}

func (l Label) Text() string {
	return fmt.Sprintf("Seal: %s\nDate: %s", l.TransactionID, l.Timestamp.UTC().Format(time.RFC3339))
}
