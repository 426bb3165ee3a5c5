package conduit

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/egaotan/rwa-conduit/psm"
	"github.com/egaotan/rwa-conduit/token"
	"github.com/egaotan/rwa-conduit/vat"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lock   sync.Mutex
	events []*Event
}

func (r *recorder) OnEvent(ev *Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.lock.Lock()
	defer r.lock.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (r *recorder) last() *Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = nil
}

func key() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func units(n int64) *big.Int {
	return big.NewInt(n)
}

func wad(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wad " + s)
	}
	return v
}

func percent(p int64) *big.Int {
	return new(big.Int).Div(new(big.Int).Mul(program.WAD, big.NewInt(p)), big.NewInt(100))
}

type fixture struct {
	ctx    context.Context
	be     *backend.Backend
	ledger *token.Program
	gem    *token.Token
	dai    *token.Token
	module *psm.Module
	vat    *vat.Program
	rec    *recorder
	admin  solana.PublicKey
	pusher solana.PublicKey
	dest   solana.PublicKey
}

func newFixture(t *testing.T, tin *big.Int, tout *big.Int, line *big.Int) *fixture {
	t.Helper()
	be := backend.NewBackend(nil)
	ledger := token.NewProgram(be)
	gem, err := ledger.CreateToken(key(), "GEM", 6)
	require.NoError(t, err)
	dai, err := ledger.CreateToken(key(), "DAI", 18)
	require.NoError(t, err)
	module, err := psm.NewModule(be, key(), key(), gem, dai, tin, tout, line)
	require.NoError(t, err)
	return &fixture{
		ctx:    context.Background(),
		be:     be,
		ledger: ledger,
		gem:    gem,
		dai:    dai,
		module: module,
		vat:    vat.NewProgram(be, key()),
		rec:    &recorder{},
		admin:  key(),
		pusher: key(),
		dest:   key(),
	}
}

// newModule adds a second stability module over the same unit-coin.
func (f *fixture) newModule(t *testing.T, gemDecimals uint8, tout *big.Int) *psm.Module {
	t.Helper()
	gem, err := f.ledger.CreateToken(key(), "GEM2", gemDecimals)
	require.NoError(t, err)
	module, err := psm.NewModule(f.be, key(), key(), gem, f.dai, big.NewInt(0), tout, nil)
	require.NoError(t, err)
	return module
}

// seed sells gem into module so it holds a reserve to buy from.
func (f *fixture) seed(t *testing.T, module *psm.Module, amount *big.Int) {
	t.Helper()
	lp := key()
	gem := module.Gem().(*token.Token)
	require.NoError(t, gem.Mint(f.ctx, lp, amount))
	require.NoError(t, gem.Approve(f.ctx, lp, module.GemJoin(), program.MaxUint256))
	_, err := module.SellGem(f.ctx, lp, lp, amount)
	require.NoError(t, err)
}

func (f *fixture) input(t *testing.T) *InputConduit {
	t.Helper()
	c, err := NewInputConduit(f.ctx, f.be, key(), f.admin, f.module, f.dest, f.rec)
	require.NoError(t, err)
	require.NoError(t, c.Mate(f.ctx, f.admin, f.pusher))
	return c
}

func (f *fixture) output(t *testing.T) (*OutputConduit, solana.PublicKey) {
	t.Helper()
	c, err := NewOutputConduit(f.ctx, f.be, key(), f.admin, f.module, f.rec)
	require.NoError(t, err)
	operator := key()
	require.NoError(t, c.Mate(f.ctx, f.admin, f.pusher))
	require.NoError(t, c.Hope(f.ctx, f.admin, operator))
	return c, operator
}

// reentrant calls back into a conduit from inside the stability module.
type reentrant struct {
	*psm.Module
	target Conduit
	caller solana.PublicKey
}

func (r *reentrant) SellGem(ctx context.Context, caller solana.PublicKey, usr solana.PublicKey, gemAmt *big.Int) (*big.Int, error) {
	if _, err := r.target.Push(ctx, r.caller); err != nil {
		return nil, err
	}
	return r.Module.SellGem(ctx, caller, usr, gemAmt)
}
