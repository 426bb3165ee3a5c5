// Package settlement is the fixed-price redemption window that opens once the accounting
// ledger has shut down. Holders hand in gem and receive currency at the recorded price.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrLive            = errors.New("settlement: vat-still-live")
	ErrInsufficientPot = errors.New("settlement: insufficient-pot")
	ErrZeroPayout      = errors.New("settlement: zero-payout")
	ErrInvalidPrice    = errors.New("settlement: invalid-price")
)

type Facility struct {
	be       program.Executor
	id       solana.PublicKey
	gem      program.Token
	currency program.Token
	vat      program.Accounting
	gemConv  *conversion.Converter
	curConv  *conversion.Converter
	price    *big.Int
	log      *zap.SugaredLogger
}

// NewFacility prices one whole gem at price, a wad of currency.
func NewFacility(be program.Executor, id solana.PublicKey, gem program.Token, currency program.Token, price *big.Int, vat program.Accounting) (*Facility, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	gemConv, err := conversion.NewConverter(gem.Decimals())
	if err != nil {
		return nil, err
	}
	curConv, err := conversion.NewConverter(currency.Decimals())
	if err != nil {
		return nil, err
	}
	return &Facility{
		be:       be,
		id:       id,
		gem:      gem,
		currency: currency,
		vat:      vat,
		gemConv:  gemConv,
		curConv:  curConv,
		price:    new(big.Int).Set(price),
		log:      zap.NewNop().Sugar(),
	}, nil
}

func (f *Facility) SetLogger(log *zap.SugaredLogger) {
	if log != nil {
		f.log = log
	}
}

func (f *Facility) Id() solana.PublicKey {
	return f.id
}

func (f *Facility) Price() *big.Int {
	return new(big.Int).Set(f.price)
}

// Pot is the currency left to pay out.
func (f *Facility) Pot() *big.Int {
	return f.currency.BalanceOf(f.id)
}

// QuotePayout is the currency gemAmt redeems for, rounded down.
func (f *Facility) QuotePayout(gemAmt *big.Int) (*big.Int, error) {
	gem18, err := f.gemConv.To18(gemAmt)
	if err != nil {
		return nil, err
	}
	value18, err := conversion.MulDiv(gem18, f.price, program.WAD)
	if err != nil {
		return nil, err
	}
	return conversion.Div(value18, f.curConv.Factor())
}

// QuoteGem is the least gem that redeems for at least currencyAmt. Both steps round up.
func (f *Facility) QuoteGem(currencyAmt *big.Int) (*big.Int, error) {
	value18, err := f.curConv.To18(currencyAmt)
	if err != nil {
		return nil, err
	}
	scaled, err := conversion.Mul(value18, program.WAD)
	if err != nil {
		return nil, err
	}
	gem18, err := conversion.DivUp(scaled, f.price)
	if err != nil {
		return nil, err
	}
	return conversion.DivUp(gem18, f.gemConv.Factor())
}

// Redeem pulls gemAmt from caller, who must have approved the facility, and pays out.
func (f *Facility) Redeem(ctx context.Context, caller solana.PublicKey, gemAmt *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := f.be.Atomic(ctx, func(ctx context.Context) error {
		if f.vat.Live() {
			return ErrLive
		}
		out, err := f.QuotePayout(gemAmt)
		if err != nil {
			return err
		}
		if out.Sign() == 0 {
			return ErrZeroPayout
		}
		if pot := f.Pot(); pot.Cmp(out) < 0 {
			return fmt.Errorf("%w: pot %s, owed %s", ErrInsufficientPot, pot, out)
		}
		if err := f.gem.TransferFrom(ctx, f.id, caller, f.id, gemAmt); err != nil {
			return err
		}
		if err := f.currency.Transfer(ctx, f.id, caller, out); err != nil {
			return err
		}
		paid = out
		return nil
	})
	if err != nil {
		f.log.Warnf("redeem %s gem for %s failed: %v", gemAmt, caller, err)
		return nil, err
	}
	f.log.Infof("redeemed %s gem for %s, paid %s", gemAmt, caller, paid)
	return paid, nil
}
