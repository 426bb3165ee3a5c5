package program

import (
	"context"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Token is the asset ledger shape consumed by conduits. Owner-side operations name the
// acting account explicitly.
type Token interface {
	Id() solana.PublicKey
	Symbol() string
	Decimals() uint8
	BalanceOf(owner solana.PublicKey) *big.Int
	Allowance(owner solana.PublicKey, spender solana.PublicKey) *big.Int
	Transfer(ctx context.Context, from solana.PublicKey, to solana.PublicKey, amount *big.Int) error
	TransferFrom(ctx context.Context, spender solana.PublicKey, from solana.PublicKey, to solana.PublicKey, amount *big.Int) error
	Approve(ctx context.Context, owner solana.PublicKey, spender solana.PublicKey, amount *big.Int) error
}

// StabilityModule exchanges reserve-gem and unit-coin at governed fees.
type StabilityModule interface {
	Id() solana.PublicKey
	// GemJoin is the intake account that pulls gem from the seller.
	GemJoin() solana.PublicKey
	Gem() Token
	Dai() Token
	Tin() *big.Int
	Tout() *big.Int
	// SellGem pulls gemAmt from caller and credits usr with unit-coin less tin.
	SellGem(ctx context.Context, caller solana.PublicKey, usr solana.PublicKey, gemAmt *big.Int) (*big.Int, error)
	// BuyGem pulls unit-coin plus tout from caller and sends gemAmt to usr.
	BuyGem(ctx context.Context, caller solana.PublicKey, usr solana.PublicKey, gemAmt *big.Int) (*big.Int, error)
}

// Accounting is the accounting ledger; only its shutdown flag is consumed.
type Accounting interface {
	Live() bool
}
