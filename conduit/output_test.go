package conduit

import (
	"testing"

	"github.com/egaotan/rwa-conduit/program"
	"github.com/egaotan/rwa-conduit/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutputConduit(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, _ := f.output(t)
	assert.Equal(t, program.Output, c.Kind())
	assert.Equal(t, Unarmed{}, c.Recipient())
	assert.Equal(t, 0, f.dai.Allowance(c.Id(), f.module.Id()).Cmp(program.MaxUint256))
	assert.Equal(t, []EventKind{EventRely, EventMate, EventHope}, f.rec.kinds())
}

func TestOutputConduit_PickTwiceSendsToLast(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, operator := f.output(t)
	f.seed(t, f.module, units(1000))
	a, b := key(), key()
	require.NoError(t, c.Kiss(f.ctx, f.admin, a))
	require.NoError(t, c.Kiss(f.ctx, f.admin, b))
	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("100000000000000")))

	require.NoError(t, c.Pick(f.ctx, operator, a))
	require.NoError(t, c.Pick(f.ctx, operator, b))
	assert.Equal(t, Armed{To: b}, c.Recipient())

	got, err := c.Push(f.ctx, f.pusher)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Int64())
	assert.Equal(t, int64(100), f.gem.BalanceOf(b).Int64())
	assert.Equal(t, 0, f.gem.BalanceOf(a).Sign())
	assert.Equal(t, 0, f.dai.BalanceOf(c.Id()).Sign())
	assert.Equal(t, Unarmed{}, c.Recipient())

	ev := f.rec.last()
	assert.Equal(t, EventPush, ev.Kind)
	assert.Equal(t, b, ev.Target)
	assert.Equal(t, "100000000000000", ev.Wad.String())
}

func TestOutputConduit_PushBeforePick(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, _ := f.output(t)
	f.seed(t, f.module, units(1000))
	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("100000000000000")))

	_, err := c.Push(f.ctx, f.pusher)
	require.ErrorIs(t, err, ErrNotPicked)
	assert.Equal(t, ClassLifecycle, ClassOf(err))
	assert.Equal(t, "100000000000000", f.dai.BalanceOf(c.Id()).String())
}

func TestOutputConduit_EveryPushNeedsFreshPick(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, operator := f.output(t)
	f.seed(t, f.module, units(1000))
	to := key()
	require.NoError(t, c.Kiss(f.ctx, f.admin, to))
	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("100000000000000")))
	require.NoError(t, c.Pick(f.ctx, operator, to))

	_, err := c.PushAmount(f.ctx, f.pusher, wad("10000000000000"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.gem.BalanceOf(to).Int64())

	_, err = c.PushAmount(f.ctx, f.pusher, wad("10000000000000"))
	require.ErrorIs(t, err, ErrNotPicked)
	assert.Equal(t, "90000000000000", f.dai.BalanceOf(c.Id()).String())
}

func TestOutputConduit_PickGuards(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, operator := f.output(t)
	who := key()

	require.ErrorIs(t, c.Pick(f.ctx, f.pusher, who), ErrNotOperator)
	require.ErrorIs(t, c.Pick(f.ctx, operator, who), ErrNotWhitelisted)
	require.ErrorIs(t, c.Pick(f.ctx, operator, program.Anyone), ErrInvalidTo)

	require.NoError(t, c.Kiss(f.ctx, f.admin, program.Anyone))
	require.NoError(t, c.Pick(f.ctx, operator, who))
	assert.Equal(t, Armed{To: who}, c.Recipient())

	require.NoError(t, c.Nope(f.ctx, f.admin, operator))
	require.ErrorIs(t, c.Pick(f.ctx, operator, who), ErrNotOperator)
}

func TestOutputConduit_PushWithBuyFee(t *testing.T) {
	f := newFixture(t, percent(0), percent(1), nil)
	c, operator := f.output(t)
	f.seed(t, f.module, units(1000))
	to := key()
	require.NoError(t, c.Kiss(f.ctx, f.admin, to))
	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("101500000000000")))

	expected, err := c.ExpectedGemAmt(wad("101500000000000"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), expected.Int64())
	need, err := c.RequiredDaiWad(units(100))
	require.NoError(t, err)
	assert.Equal(t, "101000000000000", need.String())

	require.NoError(t, c.Pick(f.ctx, operator, to))
	got, err := c.Push(f.ctx, f.pusher)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Int64())
	assert.Equal(t, int64(100), f.gem.BalanceOf(to).Int64())
	assert.Equal(t, "500000000000", f.dai.BalanceOf(c.Id()).String())
	assert.Equal(t, "101000000000000", f.rec.last().Wad.String())
}

func TestOutputConduit_PushFailuresKeepPick(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, operator := f.output(t)
	to := key()
	require.NoError(t, c.Kiss(f.ctx, f.admin, to))
	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("100000000000000")))
	require.NoError(t, c.Pick(f.ctx, operator, to))

	_, err := c.PushAmount(f.ctx, f.pusher, wad("100000000000001"))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = c.PushAmount(f.ctx, f.pusher, units(1))
	require.ErrorIs(t, err, ErrInsufficientSwap)

	// the module holds no gem yet
	_, err = c.Push(f.ctx, f.pusher)
	require.Error(t, err)
	assert.Equal(t, Armed{To: to}, c.Recipient())
	assert.Equal(t, "100000000000000", f.dai.BalanceOf(c.Id()).String())
}

func TestOutputConduit_FilePsmRotatesGem(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, operator := f.output(t)
	next := f.newModule(t, 8, percent(0))
	f.seed(t, next, units(1000))
	to := key()
	require.NoError(t, c.Kiss(f.ctx, f.admin, to))

	require.NoError(t, c.File(f.ctx, f.admin, "psm", next))
	assert.Equal(t, next.Gem().Id(), c.Gem().Id())
	assert.Equal(t, 0, f.dai.Allowance(c.Id(), f.module.Id()).Sign())
	assert.Equal(t, 0, f.dai.Allowance(c.Id(), next.Id()).Cmp(program.MaxUint256))

	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("1000000000000")))
	require.NoError(t, c.Pick(f.ctx, operator, to))
	got, err := c.Push(f.ctx, f.pusher)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Int64())
	assert.Equal(t, int64(100), next.Gem().BalanceOf(to).Int64())
}

func TestOutputConduit_FilePsmWrongDai(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, _ := f.output(t)
	other := newFixture(t, percent(0), percent(0), nil)
	require.ErrorIs(t, c.File(f.ctx, f.admin, "psm", other.module), ErrWrongDai)
	require.ErrorIs(t, c.File(f.ctx, f.admin, "to", key()), ErrUnrecognisedParam)
	assert.Equal(t, f.module.Id(), c.Psm().Id())
}

func TestOutputConduit_QuitAndYank(t *testing.T) {
	f := newFixture(t, percent(0), percent(0), nil)
	c, _ := f.output(t)
	quitTo := key()
	require.NoError(t, f.dai.Mint(f.ctx, c.Id(), wad("1000")))
	require.NoError(t, c.File(f.ctx, f.admin, "quitTo", quitTo))

	require.NoError(t, c.QuitAmount(f.ctx, f.pusher, wad("400")))
	assert.Equal(t, "400", f.dai.BalanceOf(quitTo).String())
	require.NoError(t, c.Quit(f.ctx, f.pusher))
	assert.Equal(t, "1000", f.dai.BalanceOf(quitTo).String())

	require.NoError(t, f.gem.Mint(f.ctx, c.Id(), units(3)))
	usr := key()
	require.ErrorIs(t, c.Yank(f.ctx, f.admin, f.gem, usr, units(4)), token.ErrInsufficientBalance)
	require.NoError(t, c.Yank(f.ctx, f.admin, f.gem, usr, units(3)))
	assert.Equal(t, int64(3), f.gem.BalanceOf(usr).Int64())
}
