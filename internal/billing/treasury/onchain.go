package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/shopspring/decimal"

	"notary/internal/billing/models"
)

// gasDecimals is the precision of the GAS token.
const gasDecimals = 8

// GasTransferrer sends a NEP-17 GAS transfer.
type GasTransferrer interface {
	Transfer(from, to util.Uint160, amount *big.Int, data any) (util.Uint256, uint32, error)
}

// TxWaiter blocks until one of hashes is persisted or vub passes.
type TxWaiter interface {
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
}

// OnChain pays top-ups with real GAS from the treasury wallet to the
// account's chain address and waits for the transfer to HALT.
type OnChain struct {
	gas         GasTransferrer
	waiter      TxWaiter
	from        util.Uint160
	waitTimeout time.Duration
	logger      *slog.Logger
}

func NewOnChain(act *actor.Actor, waitTimeout time.Duration, logger *slog.Logger) *OnChain {
	return newOnChain(gas.New(act), act, act.Sender(), waitTimeout, logger)
}

func newOnChain(g GasTransferrer, w TxWaiter, from util.Uint160, waitTimeout time.Duration, logger *slog.Logger) *OnChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnChain{gas: g, waiter: w, from: from, waitTimeout: waitTimeout, logger: logger}
}

func (o *OnChain) Transfer(ctx context.Context, to *models.Account, amount decimal.Decimal) (string, error) {
	recipient, err := address.StringToUint160(to.ChainAddress)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address %q: %w", to.ChainAddress, err)
	}
	if recipient.Equals(o.from) {
		return "", ErrSelfTransfer
	}
	units := amount.Shift(gasDecimals).BigInt()
	if units.Sign() <= 0 {
		return "", fmt.Errorf("transfer amount %s below token precision", amount)
	}

	txHash, vub, err := o.gas.Transfer(o.from, recipient, units, nil)
	if err != nil {
		return "", fmt.Errorf("send gas transfer: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.waitTimeout)
	defer cancel()
	res, err := o.waiter.WaitAny(waitCtx, vub, txHash)
	if err != nil {
		return "", fmt.Errorf("await gas transfer %s: %w", txHash.StringLE(), err)
	}
	if res.VMState != vmstate.Halt {
		return "", fmt.Errorf("gas transfer %s faulted: %s", txHash.StringLE(), res.FaultException)
	}

	o.logger.InfoContext(ctx, "treasury transfer confirmed",
		"tx_id", txHash.StringLE(),
		"to", to.ChainAddress,
		"amount", amount.String(),
	)
	return txHash.StringLE(), nil
}

func (o *OnChain) Reverse(ctx context.Context, to *models.Account, amount decimal.Decimal, reference string) error {
	o.logger.ErrorContext(ctx, "CRITICAL: confirmed treasury transfer left uncredited",
		"tx_id", reference,
		"to", to.ChainAddress,
		"amount", amount.String(),
	)
	return ErrIrreversible
}
