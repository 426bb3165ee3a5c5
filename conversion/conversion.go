// Package conversion converts between a reserve-gem's native precision and the
// 18-decimal unit-coin, applying stability-module fees in both directions.
//
// Forward conversions round down. The inverse helpers round so that their answer is
// sufficient for the forward direction:
//
//	GemToCoin(RequiredGemAmt(wad)) >= wad, overshooting by at most one gem unit
//	CoinToGem(RequiredDaiWad(amt)) is amt or amt-1
//
// The one-unit shortfall in the second relation comes from truncating wad*WAD/(WAD+tout)
// and is never in the caller's favor.
package conversion

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/program"
)

var (
	ErrUnsupportedDecimals = errors.New("conversion: gem decimals exceed coin decimals")
	ErrFeeTooHigh          = errors.New("conversion: fee leaves nothing to convert")
)

type Converter struct {
	decimals uint8
	factor   *big.Int
}

// NewConverter derives the to-18 conversion factor 10^(18-decimals).
func NewConverter(gemDecimals uint8) (*Converter, error) {
	if gemDecimals > program.CoinDecimals {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDecimals, gemDecimals)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(program.CoinDecimals-gemDecimals)), nil)
	return &Converter{
		decimals: gemDecimals,
		factor:   factor,
	}, nil
}

func (c *Converter) Decimals() uint8 {
	return c.decimals
}

func (c *Converter) Factor() *big.Int {
	return new(big.Int).Set(c.factor)
}

// To18 scales a gem amount to 18 decimals without fees.
func (c *Converter) To18(amt *big.Int) (*big.Int, error) {
	return Mul(amt, c.factor)
}

// GemToCoin is the unit-coin realized by selling amt of gem at fee tin.
func (c *Converter) GemToCoin(amt *big.Int, tin *big.Int) (*big.Int, error) {
	amt18, err := c.To18(amt)
	if err != nil {
		return nil, err
	}
	fee, err := MulDiv(amt18, tin, program.WAD)
	if err != nil {
		return nil, err
	}
	return Sub(amt18, fee)
}

// CoinToGem is the gem amount that wad of unit-coin buys at fee tout.
func (c *Converter) CoinToGem(wad *big.Int, tout *big.Int) (*big.Int, error) {
	den, err := Add(program.WAD, tout)
	if err != nil {
		return nil, err
	}
	gross, err := MulDiv(wad, program.WAD, den)
	if err != nil {
		return nil, err
	}
	return Div(gross, c.factor)
}

// RequiredGemAmt is the smallest gem amount whose sale at tin yields at least wad.
func (c *Converter) RequiredGemAmt(wad *big.Int, tin *big.Int) (*big.Int, error) {
	net, err := Sub(program.WAD, tin)
	if err != nil {
		return nil, err
	}
	if net.Sign() == 0 {
		return nil, ErrFeeTooHigh
	}
	num, err := Mul(wad, program.WAD)
	if err != nil {
		return nil, err
	}
	den, err := Mul(net, c.factor)
	if err != nil {
		return nil, err
	}
	return DivUp(num, den)
}

// RequiredDaiWad is the unit-coin a stability module debits to sell amt of gem at tout.
func (c *Converter) RequiredDaiWad(amt *big.Int, tout *big.Int) (*big.Int, error) {
	amt18, err := c.To18(amt)
	if err != nil {
		return nil, err
	}
	fee, err := MulDiv(amt18, tout, program.WAD)
	if err != nil {
		return nil, err
	}
	return Add(amt18, fee)
}
