package env

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

type Token struct {
	Symbol  string          `json:"symbol"`
	Name    string          `json:"name"`
	Decimal uint8           `json:"decimal"`
	Price   decimal.Decimal `json:"price"`
}

// AmountUi scales a base-unit amount to whole tokens.
func (token *Token) AmountUi(amount *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -int32(token.Decimal))
}

// Amount converts whole tokens back to base units. Precision beyond the token's
// decimals is an error rather than silently dropped.
func (token *Token) Amount(ui decimal.Decimal) (*big.Int, error) {
	if ui.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", ui)
	}
	scaled := ui.Shift(int32(token.Decimal))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%s %s has more than %d decimals", ui, token.Symbol, token.Decimal)
	}
	return scaled.BigInt(), nil
}

func (token *Token) Value(amount *big.Int) decimal.Decimal {
	return token.AmountUi(amount).Mul(token.Price)
}

func (token *Token) Format(amount interface{ String() string }) string {
	v, ok := new(big.Int).SetString(amount.String(), 10)
	if !ok {
		return amount.String() + " " + token.Symbol
	}
	return token.AmountUi(v).String() + " " + token.Symbol
}
