package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

// Token is a handle on one mint of the ledger. It implements program.Token.
type Token struct {
	p   *Program
	key solana.PublicKey
}

var _ program.Token = (*Token)(nil)

func (t *Token) Id() solana.PublicKey {
	return t.key
}

func (t *Token) Symbol() string {
	t.p.lock.RLock()
	defer t.p.lock.RUnlock()
	return t.p.tokens[t.key].Symbol
}

func (t *Token) Decimals() uint8 {
	t.p.lock.RLock()
	defer t.p.lock.RUnlock()
	return t.p.tokens[t.key].Decimals
}

func (t *Token) TotalSupply() *big.Int {
	t.p.lock.RLock()
	defer t.p.lock.RUnlock()
	return new(big.Int).Set(t.p.tokens[t.key].Supply)
}

func (t *Token) BalanceOf(owner solana.PublicKey) *big.Int {
	t.p.lock.RLock()
	defer t.p.lock.RUnlock()
	return t.p.balance(t.key, owner)
}

func (t *Token) Allowance(owner solana.PublicKey, spender solana.PublicKey) *big.Int {
	t.p.lock.RLock()
	defer t.p.lock.RUnlock()
	return t.p.allowance(t.key, owner, spender)
}

func (t *Token) Transfer(ctx context.Context, from solana.PublicKey, to solana.PublicKey, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.p.be.Atomic(ctx, func(ctx context.Context) error {
		t.p.lock.Lock()
		defer t.p.lock.Unlock()
		return t.p.move(t.key, from, to, amount)
	})
}

// TransferFrom moves from's tokens on behalf of spender. An allowance of MaxUint256 is
// never decremented.
func (t *Token) TransferFrom(ctx context.Context, spender solana.PublicKey, from solana.PublicKey, to solana.PublicKey, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.p.be.Atomic(ctx, func(ctx context.Context) error {
		t.p.lock.Lock()
		defer t.p.lock.Unlock()
		if spender != from {
			allowance := t.p.allowance(t.key, from, spender)
			if allowance.Cmp(amount) < 0 {
				return fmt.Errorf("%w: %s allows %s only %s, need %s", ErrInsufficientAllowance, from, spender, allowance, amount)
			}
			if allowance.Cmp(program.MaxUint256) != 0 {
				t.p.setAllowance(t.key, from, spender, new(big.Int).Sub(allowance, amount))
			}
		}
		return t.p.move(t.key, from, to, amount)
	})
}

func (t *Token) Approve(ctx context.Context, owner solana.PublicKey, spender solana.PublicKey, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if program.IsZero(spender) {
		return fmt.Errorf("%w: approve to the zero address", ErrInvalidAddress)
	}
	return t.p.be.Atomic(ctx, func(ctx context.Context) error {
		t.p.lock.Lock()
		defer t.p.lock.Unlock()
		t.p.setAllowance(t.key, owner, spender, new(big.Int).Set(amount))
		return nil
	})
}

func (t *Token) Mint(ctx context.Context, to solana.PublicKey, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if program.IsZero(to) {
		return fmt.Errorf("%w: mint to the zero address", ErrInvalidAddress)
	}
	return t.p.be.Atomic(ctx, func(ctx context.Context) error {
		t.p.lock.Lock()
		defer t.p.lock.Unlock()
		supply, err := conversion.Add(t.p.tokens[t.key].Supply, amount)
		if err != nil {
			return err
		}
		balance, err := conversion.Add(t.p.balance(t.key, to), amount)
		if err != nil {
			return err
		}
		t.p.setSupply(t.key, supply)
		t.p.setBalance(t.key, to, balance)
		return nil
	})
}

func (t *Token) Burn(ctx context.Context, from solana.PublicKey, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.p.be.Atomic(ctx, func(ctx context.Context) error {
		t.p.lock.Lock()
		defer t.p.lock.Unlock()
		balance := t.p.balance(t.key, from)
		if balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s holds %s, burn %s", ErrInsufficientBalance, from, balance, amount)
		}
		t.p.setBalance(t.key, from, new(big.Int).Sub(balance, amount))
		t.p.setSupply(t.key, new(big.Int).Sub(t.p.tokens[t.key].Supply, amount))
		return nil
	})
}
