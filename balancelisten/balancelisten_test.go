package balancelisten

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/dingsdk"
	"github.com/egaotan/rwa-conduit/env"
	"github.com/egaotan/rwa-conduit/token"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

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

func (n *notices) len() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.got)
}

func TestBalanceListen_Check(t *testing.T) {
	ctx := context.Background()
	be := backend.NewBackend(nil)
	ledger := token.NewProgram(be)
	gem, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "GEM", 6)
	require.NoError(t, err)
	owner := solana.NewWallet().PublicKey()
	n := &notices{}
	bl := NewBalanceListen(ctx, time.Hour, env.NewEnv(nil), n, nil)
	bl.Watch(&Holding{Name: "input", Owner: owner, Token: gem})

	assert.True(t, bl.Check(ctx))
	assert.False(t, bl.Check(ctx))
	require.NoError(t, gem.Mint(ctx, owner, big.NewInt(1500000)))
	assert.True(t, bl.Check(ctx))
	require.Equal(t, 2, n.len())
	assert.Contains(t, n.got[1], "input: 0 -> 1.5 GEM (1.5);")
}

func TestBalanceListen_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	be := backend.NewBackend(nil)
	ledger := token.NewProgram(be)
	dai, err := ledger.CreateToken(solana.NewWallet().PublicKey(), "DAI", 18)
	require.NoError(t, err)
	n := &notices{}
	bl := NewBalanceListen(ctx, time.Millisecond, env.NewEnv(nil), n, nil)
	bl.Watch(&Holding{Name: "output", Owner: solana.NewWallet().PublicKey(), Token: dai})
	bl.Start()
	require.Eventually(t, func() bool { return n.len() == 1 }, time.Second, time.Millisecond)
	bl.Stop()
}
