package ports

import (
	"context"
	"math/big"
)

// LedgerClient is the ledger boundary: value transfer, account existence and a
// monotonic sequence source. One implementation per supported chain.
type LedgerClient interface {
	BalanceAt(ctx context.Context, account string) (*big.Int, error)
	TransferFee(ctx context.Context, from, to string, amount *big.Int) error
	AccountExists(ctx context.Context, account string) (bool, error)
	Sequence(ctx context.Context) (uint64, error)
	Ping(ctx context.Context) error
}
