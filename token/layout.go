package token

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

type TokenLayout struct {
	Symbol   string
	Decimals uint8
	Supply   *big.Int
}

type KeyedToken struct {
	Key solana.PublicKey
	TokenLayout
}

type allowanceKey struct {
	owner   solana.PublicKey
	spender solana.PublicKey
}

// UserBalance is one holder's position in one token.
type UserBalance struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount *big.Int
}
