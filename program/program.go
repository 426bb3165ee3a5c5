package program

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"
)

var (
	// Anyone is the wildcard member of a role set. It is also the unset address.
	Anyone = solana.PublicKey{}
)

var (
	WAD          = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	MaxUint256   = new(big.Int).Set(math.MaxBig256)
	CoinDecimals = uint8(18)
)

const (
	Input     = "input"
	Output    = "output"
	MultiSwap = "multiswap"
	SwapInput = "swapinput"
)

// IsZero reports whether key is the unset address.
func IsZero(key solana.PublicKey) bool {
	return key == Anyone
}

// Journal is an undo log that can be rolled back to an earlier snapshot.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
	Commit()
}

// Executor runs one operation as an atomic unit. Journals registered with the executor
// are rolled back when fn fails.
type Executor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	Register(j Journal)
	// OnCommit runs fn once the operation carried by ctx has committed.
	OnCommit(ctx context.Context, fn func())
}
