package conduit

import (
	"testing"

	"github.com/egaotan/rwa-conduit/program"
	"github.com/egaotan/rwa-conduit/psm"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type multiFixture struct {
	*fixture
	c        *MultiSwapOutputConduit
	operator solana.PublicKey
	to       solana.PublicKey
	alt      *psm.Module
}

func newMultiFixture(t *testing.T) *multiFixture {
	t.Helper()
	f := newFixture(t, percent(0), percent(0), nil)
	c, err := NewMultiSwapOutputConduit(f.ctx, f.be, key(), f.admin, f.dai, f.rec)
	require.NoError(t, err)
	m := &multiFixture{fixture: f, c: c, operator: key(), to: key(), alt: f.newModule(t, 8, percent(1))}
	require.NoError(t, c.Mate(f.ctx, f.admin, f.pusher))
	require.NoError(t, c.Hope(f.ctx, f.admin, m.operator))
	require.NoError(t, c.Kiss(f.ctx, f.admin, m.to))
	f.seed(t, f.module, units(1000))
	f.seed(t, m.alt, units(1000000))
	return m
}

func TestMultiSwap_ClapSlap(t *testing.T) {
	m := newMultiFixture(t)
	require.ErrorIs(t, m.c.Clap(m.ctx, m.operator, m.module), ErrNotAuthorized)

	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.module))
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.module))
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.alt))
	assert.Len(t, m.c.Pals(), 2)
	// clap admits without approving
	assert.Equal(t, 0, m.dai.Allowance(m.c.Id(), m.module.Id()).Sign())

	require.NoError(t, m.c.Slap(m.ctx, m.admin, m.alt.Id()))
	require.NoError(t, m.c.Slap(m.ctx, m.admin, m.alt.Id()))
	_, ok := m.c.Pal(m.alt.Id())
	assert.False(t, ok)

	clap, slap := 0, 0
	for _, kind := range m.rec.kinds() {
		switch kind {
		case EventClap:
			clap++
		case EventSlap:
			slap++
		}
	}
	assert.Equal(t, 2, clap)
	assert.Equal(t, 1, slap)
}

func TestMultiSwap_ClapWrongDai(t *testing.T) {
	m := newMultiFixture(t)
	other := newFixture(t, percent(0), percent(0), nil)
	require.ErrorIs(t, m.c.Clap(m.ctx, m.admin, other.module), ErrWrongDai)
	assert.Empty(t, m.c.Pals())
}

func TestMultiSwap_HookMovesApproval(t *testing.T) {
	m := newMultiFixture(t)
	require.ErrorIs(t, m.c.Hook(m.ctx, m.operator, m.module.Id()), ErrNotPal)
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.module))
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.alt))
	require.ErrorIs(t, m.c.Hook(m.ctx, m.pusher, m.module.Id()), ErrNotOperator)

	require.NoError(t, m.c.Hook(m.ctx, m.operator, m.module.Id()))
	assert.Equal(t, 0, m.dai.Allowance(m.c.Id(), m.module.Id()).Cmp(program.MaxUint256))

	require.NoError(t, m.c.Hook(m.ctx, m.operator, m.alt.Id()))
	assert.Equal(t, 0, m.dai.Allowance(m.c.Id(), m.module.Id()).Sign())
	assert.Equal(t, 0, m.dai.Allowance(m.c.Id(), m.alt.Id()).Cmp(program.MaxUint256))
	hooked, ok := m.c.Binding().(Hooked)
	require.True(t, ok)
	assert.Equal(t, m.alt.Id(), hooked.Psm.Id())
}

func TestMultiSwap_SlapHookedUnbinds(t *testing.T) {
	m := newMultiFixture(t)
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.module))
	require.NoError(t, m.c.Hook(m.ctx, m.operator, m.module.Id()))

	require.NoError(t, m.c.Slap(m.ctx, m.admin, m.module.Id()))
	assert.Equal(t, Unhooked{}, m.c.Binding())
	assert.Equal(t, 0, m.dai.Allowance(m.c.Id(), m.module.Id()).Sign())
	_, err := m.c.ExpectedGemAmt(units(1))
	require.ErrorIs(t, err, ErrNotHooked)
}

func TestMultiSwap_PushOrderOfFailures(t *testing.T) {
	m := newMultiFixture(t)
	require.NoError(t, m.dai.Mint(m.ctx, m.c.Id(), wad("100000000000000")))
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.module))

	_, err := m.c.Push(m.ctx, m.pusher)
	require.ErrorIs(t, err, ErrNotPicked)

	require.NoError(t, m.c.Hook(m.ctx, m.operator, m.module.Id()))
	_, err = m.c.Push(m.ctx, m.pusher)
	require.ErrorIs(t, err, ErrNotPicked)

	require.NoError(t, m.c.Slap(m.ctx, m.admin, m.module.Id()))
	require.NoError(t, m.c.Pick(m.ctx, m.operator, m.to))
	_, err = m.c.Push(m.ctx, m.pusher)
	require.ErrorIs(t, err, ErrNotHooked)
	assert.Equal(t, "100000000000000", m.dai.BalanceOf(m.c.Id()).String())
}

func TestMultiSwap_PushClearsBoth(t *testing.T) {
	m := newMultiFixture(t)
	require.NoError(t, m.dai.Mint(m.ctx, m.c.Id(), wad("202000000000000")))
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.module))
	require.NoError(t, m.c.Clap(m.ctx, m.admin, m.alt))

	require.NoError(t, m.c.Hook(m.ctx, m.operator, m.alt.Id()))
	require.NoError(t, m.c.Pick(m.ctx, m.operator, m.to))
	expected, err := m.c.ExpectedGemAmt(wad("101000000000000"))
	require.NoError(t, err)
	got, err := m.c.PushAmount(m.ctx, m.pusher, wad("101000000000000"))
	require.NoError(t, err)
	assert.Equal(t, 0, expected.Cmp(got))
	assert.Equal(t, int64(10000), got.Int64())
	assert.Equal(t, int64(10000), m.alt.Gem().BalanceOf(m.to).Int64())
	assert.Equal(t, Unarmed{}, m.c.Recipient())
	assert.Equal(t, Unhooked{}, m.c.Binding())

	ev := m.rec.last()
	assert.Equal(t, EventPush, ev.Kind)
	assert.Equal(t, m.alt.Id(), ev.Pool)

	_, err = m.c.Push(m.ctx, m.pusher)
	require.ErrorIs(t, err, ErrNotPicked)

	require.NoError(t, m.c.Hook(m.ctx, m.operator, m.module.Id()))
	require.NoError(t, m.c.Pick(m.ctx, m.operator, m.to))
	got, err = m.c.Push(m.ctx, m.pusher)
	require.NoError(t, err)
	assert.Equal(t, int64(101), got.Int64())
	assert.Equal(t, int64(101), m.gem.BalanceOf(m.to).Int64())
	assert.Equal(t, 0, m.dai.BalanceOf(m.c.Id()).Sign())
}

func TestMultiSwap_FileQuitTo(t *testing.T) {
	m := newMultiFixture(t)
	quitTo := key()
	require.ErrorIs(t, m.c.File(m.ctx, m.admin, "psm", m.module), ErrUnrecognisedParam)
	require.ErrorIs(t, m.c.File(m.ctx, m.admin, "quitTo", program.Anyone), ErrInvalidQuitTo)
	require.NoError(t, m.c.File(m.ctx, m.admin, "quitTo", quitTo))
	require.NoError(t, m.dai.Mint(m.ctx, m.c.Id(), wad("5")))
	require.NoError(t, m.c.Quit(m.ctx, m.pusher))
	assert.Equal(t, "5", m.dai.BalanceOf(quitTo).String())
}
