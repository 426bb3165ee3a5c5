package conversion

import (
	"errors"
	"math/big"

	"github.com/egaotan/rwa-conduit/program"
)

var (
	ErrOverflow       = errors.New("conversion: overflow")
	ErrUnderflow      = errors.New("conversion: underflow")
	ErrDivisionByZero = errors.New("conversion: division by zero")
)

func bound(z *big.Int) (*big.Int, error) {
	if z.Sign() < 0 {
		return nil, ErrUnderflow
	}
	if z.Cmp(program.MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return z, nil
}

func operands(xs ...*big.Int) error {
	for _, x := range xs {
		if x == nil || x.Sign() < 0 {
			return ErrUnderflow
		}
		if x.Cmp(program.MaxUint256) > 0 {
			return ErrOverflow
		}
	}
	return nil
}

// Add, Sub, Mul, Div and DivUp behave like unsigned 256-bit arithmetic that fails instead
// of wrapping. Division truncates unless stated otherwise.
func Add(x, y *big.Int) (*big.Int, error) {
	if err := operands(x, y); err != nil {
		return nil, err
	}
	return bound(new(big.Int).Add(x, y))
}

func Sub(x, y *big.Int) (*big.Int, error) {
	if err := operands(x, y); err != nil {
		return nil, err
	}
	return bound(new(big.Int).Sub(x, y))
}

func Mul(x, y *big.Int) (*big.Int, error) {
	if err := operands(x, y); err != nil {
		return nil, err
	}
	return bound(new(big.Int).Mul(x, y))
}

func Div(x, y *big.Int) (*big.Int, error) {
	if err := operands(x, y); err != nil {
		return nil, err
	}
	if y.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	return new(big.Int).Quo(x, y), nil
}

// DivUp rounds the quotient toward positive infinity.
func DivUp(x, y *big.Int) (*big.Int, error) {
	if err := operands(x, y); err != nil {
		return nil, err
	}
	if y.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

// MulDiv computes x*y/z truncating, failing if the product overflows.
func MulDiv(x, y, z *big.Int) (*big.Int, error) {
	p, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return Div(p, z)
}
