package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

// Dial connects to a Neo N3 JSON-RPC node and caches network parameters.
func Dial(ctx context.Context, endpoint string, dialTimeout, requestTimeout time.Duration) (*rpcclient.Client, error) {
	client, err := rpcclient.New(ctx, endpoint, rpcclient.Options{
		DialTimeout:    dialTimeout,
		RequestTimeout: requestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create rpc client: %w", err)
	}
	if err := client.Init(); err != nil {
		return nil, fmt.Errorf("init rpc client: %w", err)
	}
	return client, nil
}

// NewActorFactory signs with per-account actors over client.
func NewActorFactory(client *rpcclient.Client) ActorFactory {
	return func(acc *wallet.Account) (Actor, error) {
		a, err := actor.NewSimple(client, acc)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// Sealer encrypts signing keys at rest.
type Sealer interface {
	Seal(plaintext, additionalData []byte) ([]byte, error)
}

// NewSubmitter generates a fresh ledger key and returns its address with the
// WIF sealed to that address.
func NewSubmitter(sealer Sealer) (Submitter, error) {
	pk, err := keys.NewPrivateKey()
	if err != nil {
		return Submitter{}, fmt.Errorf("generate key: %w", err)
	}
	addr := pk.Address()
	sealed, err := sealer.Seal([]byte(pk.WIF()), []byte(addr))
	if err != nil {
		return Submitter{}, fmt.Errorf("seal key: %w", err)
	}
	return Submitter{Address: addr, SealedKey: sealed}, nil
}
