package conduit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

// InputConduit holds reserve-gem and, on push, sells it through the stability module,
// forwarding the unit-coin proceeds to a fixed destination.
type InputConduit struct {
	*base
	psm    program.StabilityModule
	gem    program.Token
	dai    program.Token
	conv   *conversion.Converter
	to     solana.PublicKey
	quitTo solana.PublicKey
	// set only for the shutdown-aware variant
	vat      program.Accounting
	recovery solana.PublicKey
}

func NewInputConduit(ctx context.Context, be program.Executor, id solana.PublicKey, deployer solana.PublicKey, psm program.StabilityModule, to solana.PublicKey, cb Callback) (*InputConduit, error) {
	return newInputConduit(ctx, be, id, program.Input, deployer, psm, to, nil, cb)
}

func newInputConduit(ctx context.Context, be program.Executor, id solana.PublicKey, kind string, deployer solana.PublicKey, psm program.StabilityModule, to solana.PublicKey, vat program.Accounting, cb Callback) (*InputConduit, error) {
	if program.IsZero(to) {
		return nil, ErrInvalidTo
	}
	if program.IsZero(id) || program.IsZero(deployer) {
		return nil, fmt.Errorf("%w: conduit and deployer must be set", ErrInvalidAddress)
	}
	if psm.Dai().Decimals() != program.CoinDecimals {
		return nil, fmt.Errorf("%w: unit-coin has %d decimals", ErrWrongDai, psm.Dai().Decimals())
	}
	conv, err := conversion.NewConverter(psm.Gem().Decimals())
	if err != nil {
		return nil, err
	}
	c := &InputConduit{
		base: newBase(be, id, kind, cb, Pusher),
		psm:  psm,
		gem:  psm.Gem(),
		dai:  psm.Dai(),
		conv: conv,
		to:   to,
		vat:  vat,
	}
	be.Register(c)
	err = c.exec(ctx, "deploy", func(ctx context.Context) ([]*Event, error) {
		ev := c.bootstrap(deployer)
		if err := c.gem.Approve(ctx, c.id, psm.GemJoin(), program.MaxUint256); err != nil {
			return nil, err
		}
		return []*Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *InputConduit) Psm() program.StabilityModule {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.psm
}

func (c *InputConduit) Gem() program.Token {
	return c.gem
}

func (c *InputConduit) Dai() program.Token {
	return c.dai
}

func (c *InputConduit) To() solana.PublicKey {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.to
}

func (c *InputConduit) QuitTo() solana.PublicKey {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.quitTo
}

func (c *InputConduit) requireLive() error {
	if c.vat != nil && !c.vat.Live() {
		return ErrNotLive
	}
	return nil
}

// File sets "to", "quitTo" or "psm". The shutdown-aware variant also accepts "recovery".
func (c *InputConduit) File(ctx context.Context, caller solana.PublicKey, what string, value interface{}) error {
	return c.exec(ctx, "file", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireAdmin(caller); err != nil {
			return nil, err
		}
		if err := c.requireLive(); err != nil {
			return nil, err
		}
		switch what {
		case "to", "quitTo", "recovery":
			if what == "recovery" && c.vat == nil {
				break
			}
			addr, err := addressValue(value)
			if err != nil {
				return nil, err
			}
			if err := c.fileAddress(what, addr); err != nil {
				return nil, err
			}
			return []*Event{fileEvent(c.base, caller, what, addr)}, nil
		case "psm":
			next, ok := value.(program.StabilityModule)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not a stability module", ErrInvalidValue, value)
			}
			if err := c.filePsm(ctx, next); err != nil {
				return nil, err
			}
			return []*Event{fileEvent(c.base, caller, what, next.Id())}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnrecognisedParam, what)
	})
}

func (c *InputConduit) fileAddress(what string, addr solana.PublicKey) error {
	var field *solana.PublicKey
	switch what {
	case "to":
		if program.IsZero(addr) {
			return ErrInvalidTo
		}
		field = &c.to
	case "quitTo":
		if program.IsZero(addr) {
			return ErrInvalidQuitTo
		}
		field = &c.quitTo
	case "recovery":
		if program.IsZero(addr) {
			return ErrRecoveryUnset
		}
		field = &c.recovery
	}
	c.lock.RLock()
	prev := *field
	c.lock.RUnlock()
	c.mutate(func() { *field = addr }, func() { *field = prev })
	return nil
}

// filePsm rotates the stability module. The old gem intake loses its allowance and the
// new one is approved in full.
func (c *InputConduit) filePsm(ctx context.Context, next program.StabilityModule) error {
	if next.Gem().Id() != c.gem.Id() {
		return fmt.Errorf("%w: %s", ErrWrongGem, next.Gem().Id())
	}
	if next.Dai().Id() != c.dai.Id() {
		return fmt.Errorf("%w: %s", ErrWrongDai, next.Dai().Id())
	}
	prev := c.Psm()
	if err := c.gem.Approve(ctx, c.id, prev.GemJoin(), new(big.Int)); err != nil {
		return err
	}
	if err := c.gem.Approve(ctx, c.id, next.GemJoin(), program.MaxUint256); err != nil {
		return err
	}
	c.mutate(func() { c.psm = next }, func() { c.psm = prev })
	return nil
}

// Push sells the whole gem balance.
func (c *InputConduit) Push(ctx context.Context, caller solana.PublicKey) (*big.Int, error) {
	return c.push(ctx, caller, nil)
}

// PushAmount sells amount of gem and returns the unit-coin forwarded to the destination.
func (c *InputConduit) PushAmount(ctx context.Context, caller solana.PublicKey, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %v", ErrInvalidValue, amount)
	}
	return c.push(ctx, caller, amount)
}

func (c *InputConduit) push(ctx context.Context, caller solana.PublicKey, amount *big.Int) (*big.Int, error) {
	var realized *big.Int
	err := c.exec(ctx, "push", func(ctx context.Context) ([]*Event, error) {
		if err := c.requirePusher(caller); err != nil {
			return nil, err
		}
		if err := c.requireLive(); err != nil {
			return nil, err
		}
		psm, to := c.Psm(), c.To()
		if program.IsZero(to) {
			return nil, ErrInvalidTo
		}
		balance := c.gem.BalanceOf(c.id)
		gemAmt := amount
		if gemAmt == nil {
			gemAmt = balance
		}
		if gemAmt.Cmp(balance) > 0 {
			return nil, fmt.Errorf("%w: holds %s, push %s", ErrInsufficientBalance, balance, gemAmt)
		}
		expected, err := c.conv.GemToCoin(gemAmt, psm.Tin())
		if err != nil {
			return nil, err
		}
		if expected.Sign() == 0 {
			return nil, ErrInsufficientSwap
		}
		pre := c.dai.BalanceOf(c.id)
		if _, err := psm.SellGem(ctx, c.id, c.id, gemAmt); err != nil {
			return nil, err
		}
		out, err := conversion.Sub(c.dai.BalanceOf(c.id), pre)
		if err != nil {
			return nil, err
		}
		if err := c.dai.Transfer(ctx, c.id, to, out); err != nil {
			return nil, err
		}
		realized = out
		ev := c.event(EventPush, caller)
		ev.Target = to
		ev.Pool = psm.Id()
		ev.Token = c.gem.Id()
		ev.Amount = new(big.Int).Set(gemAmt)
		ev.Wad = new(big.Int).Set(out)
		return []*Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return realized, nil
}

// Quit returns the whole gem balance to the quit destination.
func (c *InputConduit) Quit(ctx context.Context, caller solana.PublicKey) error {
	return c.exec(ctx, "quit", func(ctx context.Context) ([]*Event, error) {
		return c.quit(ctx, caller, c.gem, c.QuitTo(), nil)
	})
}

func (c *InputConduit) QuitAmount(ctx context.Context, caller solana.PublicKey, amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: nil amount", ErrInvalidValue)
	}
	return c.exec(ctx, "quit", func(ctx context.Context) ([]*Event, error) {
		return c.quit(ctx, caller, c.gem, c.QuitTo(), amount)
	})
}

func (c *InputConduit) Yank(ctx context.Context, caller solana.PublicKey, tok program.Token, usr solana.PublicKey, amount *big.Int) error {
	return c.exec(ctx, "yank", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireLive(); err != nil {
			return nil, err
		}
		return c.yank(ctx, caller, tok, usr, amount)
	})
}

// ExpectedDaiWad is the unit-coin a push of gemAmt would forward at the current tin.
func (c *InputConduit) ExpectedDaiWad(gemAmt *big.Int) (*big.Int, error) {
	return c.conv.GemToCoin(gemAmt, c.Psm().Tin())
}

// RequiredGemAmt is the gem a push needs to forward at least wad.
func (c *InputConduit) RequiredGemAmt(wad *big.Int) (*big.Int, error) {
	return c.conv.RequiredGemAmt(wad, c.Psm().Tin())
}
