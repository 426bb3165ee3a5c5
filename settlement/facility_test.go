package settlement

import (
	"context"
	"math/big"
	"testing"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/egaotan/rwa-conduit/token"
	"github.com/egaotan/rwa-conduit/vat"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx      context.Context
	gem      *token.Token
	currency *token.Token
	vat      *vat.Program
	facility *Facility
}

// price of 1.02 currency per gem
func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := backend.NewBackend(nil)
	ledger := token.NewProgram(be)
	gem, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "GEM", 6)
	require.NoError(t, err)
	currency, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "USDC", 6)
	require.NoError(t, err)
	v := vat.NewProgram(be, solana.NewWallet().PublicKey())
	price := new(big.Int).Div(new(big.Int).Mul(program.WAD, big.NewInt(102)), big.NewInt(100))
	f, err := NewFacility(be, solana.NewWallet().PublicKey(), gem, currency, price, v)
	require.NoError(t, err)
	return &fixture{ctx: context.Background(), gem: gem, currency: currency, vat: v, facility: f}
}

func (f *fixture) holder(t *testing.T, gemAmt int64) solana.PublicKey {
	t.Helper()
	who := solana.NewWallet().PublicKey()
	require.NoError(t, f.gem.Mint(f.ctx, who, big.NewInt(gemAmt)))
	require.NoError(t, f.gem.Approve(f.ctx, who, f.facility.Id(), program.MaxUint256))
	return who
}

func TestFacility_RedeemRequiresShutdown(t *testing.T) {
	f := newFixture(t)
	who := f.holder(t, 100)
	require.NoError(t, f.currency.Mint(f.ctx, f.facility.Id(), big.NewInt(1000)))

	_, err := f.facility.Redeem(f.ctx, who, big.NewInt(100))
	require.ErrorIs(t, err, ErrLive)
	assert.Equal(t, int64(100), f.gem.BalanceOf(who).Int64())
}

func TestFacility_Redeem(t *testing.T) {
	f := newFixture(t)
	who := f.holder(t, 100)
	require.NoError(t, f.currency.Mint(f.ctx, f.facility.Id(), big.NewInt(1000)))
	require.NoError(t, f.vat.Cage(f.ctx))

	paid, err := f.facility.Redeem(f.ctx, who, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(102), paid.Int64())
	assert.Equal(t, int64(102), f.currency.BalanceOf(who).Int64())
	assert.Equal(t, int64(100), f.gem.BalanceOf(f.facility.Id()).Int64())
	assert.Equal(t, int64(898), f.facility.Pot().Int64())
}

func TestFacility_InsufficientPot(t *testing.T) {
	f := newFixture(t)
	who := f.holder(t, 100)
	require.NoError(t, f.currency.Mint(f.ctx, f.facility.Id(), big.NewInt(101)))
	require.NoError(t, f.vat.Cage(f.ctx))

	_, err := f.facility.Redeem(f.ctx, who, big.NewInt(100))
	require.ErrorIs(t, err, ErrInsufficientPot)
	assert.Equal(t, int64(100), f.gem.BalanceOf(who).Int64())

	_, err = f.facility.Redeem(f.ctx, who, big.NewInt(0))
	require.ErrorIs(t, err, ErrZeroPayout)
}

func TestFacility_QuoteGemRoundsUp(t *testing.T) {
	f := newFixture(t)
	for _, want := range []int64{1, 7, 102, 103, 999, 1000001} {
		gemAmt, err := f.facility.QuoteGem(big.NewInt(want))
		require.NoError(t, err)
		payout, err := f.facility.QuotePayout(gemAmt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, payout.Int64(), want, "gem %s", gemAmt)
		less, err := f.facility.QuotePayout(new(big.Int).Sub(gemAmt, big.NewInt(1)))
		require.NoError(t, err)
		assert.Less(t, less.Int64(), want, "gem %s", gemAmt)
	}
	gemAmt, err := f.facility.QuoteGem(big.NewInt(103))
	require.NoError(t, err)
	assert.Equal(t, int64(101), gemAmt.Int64())
}

func TestNewFacility_InvalidPrice(t *testing.T) {
	be := backend.NewBackend(nil)
	ledger := token.NewProgram(be)
	gem, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "GEM", 6)
	require.NoError(t, err)
	_, err = NewFacility(be, solana.NewWallet().PublicKey(), gem, gem, big.NewInt(0), vat.NewProgram(be, solana.NewWallet().PublicKey()))
	require.ErrorIs(t, err, ErrInvalidPrice)
}
