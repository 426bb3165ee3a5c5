package statelisten

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/egaotan/rwa-conduit/dingsdk"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/egaotan/rwa-conduit/psm"
	"github.com/egaotan/rwa-conduit/token"
	"github.com/egaotan/rwa-conduit/vat"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type snapshots struct {
	lock sync.Mutex
	got  []*conduit.State
}

func (s *snapshots) StoreSnapshot(st *conduit.State) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.got = append(s.got, st)
	return nil
}

func (s *snapshots) len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.got)
}

type notices struct {
	lock sync.Mutex
	got  []string
}

func (n *notices) Notify(ctx context.Context, notify *dingsdk.DingNotify) (*dingsdk.DingResult, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.got = append(n.got, notify.Text.Content)
	return &dingsdk.DingResult{ErrMsg: "ok"}, nil
}

type fixture struct {
	ctx      context.Context
	vat      *vat.Program
	gem      *token.Token
	conduit  *conduit.SwapInputConduit
	admin    solana.PublicKey
	recovery solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	be := backend.NewBackend(nil)
	ledger := token.NewProgram(be)
	gem, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "GEM", 6)
	require.NoError(t, err)
	dai, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "DAI", 18)
	require.NoError(t, err)
	module, err := psm.NewModule(be, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), gem, dai, big.NewInt(0), big.NewInt(0), nil)
	require.NoError(t, err)
	v := vat.NewProgram(be, solana.NewWallet().PublicKey())
	admin := solana.NewWallet().PublicKey()
	c, err := conduit.NewSwapInputConduit(ctx, be, solana.NewWallet().PublicKey(), admin, module, solana.NewWallet().PublicKey(), v, nil)
	require.NoError(t, err)
	recovery := solana.NewWallet().PublicKey()
	require.NoError(t, c.File(ctx, admin, "recovery", recovery))
	return &fixture{ctx: ctx, vat: v, gem: gem, conduit: c, admin: admin, recovery: recovery}
}

func TestStateListen_ApprovesRecoveryOnShutdown(t *testing.T) {
	f := newFixture(t)
	store, n := &snapshots{}, &notices{}
	sl := NewStateListen(f.ctx, time.Hour, f.vat, solana.NewWallet().PublicKey(), store, n, nil)
	sl.Watch(f.conduit)

	sl.Check(f.ctx)
	assert.False(t, sl.Caged())
	assert.Equal(t, 1, store.len())
	sl.Check(f.ctx)
	assert.Equal(t, 1, store.len())
	assert.Empty(t, n.got)

	require.NoError(t, f.vat.Cage(f.ctx))
	sl.Check(f.ctx)
	assert.True(t, sl.Caged())
	assert.Equal(t, 0, f.gem.Allowance(f.conduit.Id(), f.recovery).Cmp(program.MaxUint256))
	require.Len(t, n.got, 1)
	assert.Contains(t, n.got[0], "approved to "+f.recovery.String())

	sl.Check(f.ctx)
	assert.Len(t, n.got, 1)
}

func TestStateListen_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t)
	store := &snapshots{}
	sl := NewStateListen(f.ctx, time.Millisecond, f.vat, solana.NewWallet().PublicKey(), store, dingsdk.Nop{}, nil)
	sl.Watch(f.conduit)
	sl.Start()
	require.Eventually(t, func() bool { return store.len() == 1 }, time.Second, time.Millisecond)
	sl.Stop()
}
