package conduit

import (
	"context"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Conduit is what every variant shares.
type Conduit interface {
	Id() solana.PublicKey
	Kind() string
	Roles() *Roles
	State() *State
	SetLogger(log *zap.SugaredLogger)
	Grant(ctx context.Context, caller solana.PublicKey, role Role, who solana.PublicKey) error
	Revoke(ctx context.Context, caller solana.PublicKey, role Role, who solana.PublicKey) error
	Push(ctx context.Context, caller solana.PublicKey) (*big.Int, error)
	PushAmount(ctx context.Context, caller solana.PublicKey, amount *big.Int) (*big.Int, error)
	Quit(ctx context.Context, caller solana.PublicKey) error
	QuitAmount(ctx context.Context, caller solana.PublicKey, amount *big.Int) error
	File(ctx context.Context, caller solana.PublicKey, what string, value interface{}) error
}

// Picker is an output conduit that pays a picked recipient.
type Picker interface {
	Conduit
	Pick(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error
	Recipient() Recipient
}

var (
	_ Conduit = (*InputConduit)(nil)
	_ Conduit = (*SwapInputConduit)(nil)
	_ Picker  = (*OutputConduit)(nil)
	_ Picker  = (*MultiSwapOutputConduit)(nil)
)
