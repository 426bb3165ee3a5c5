package conduit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

// OutputConduit holds unit-coin and, on push, buys gem from the stability module for a
// recipient that an operator picked from the whitelist. Each pick pays out once.
type OutputConduit struct {
	*base
	psm       program.StabilityModule
	gem       program.Token
	dai       program.Token
	conv      *conversion.Converter
	recipient Recipient
	quitTo    solana.PublicKey
}

func NewOutputConduit(ctx context.Context, be program.Executor, id solana.PublicKey, deployer solana.PublicKey, psm program.StabilityModule, cb Callback) (*OutputConduit, error) {
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
	c := &OutputConduit{
		base:      newBase(be, id, program.Output, cb, Pusher, Operator, Whitelist),
		psm:       psm,
		gem:       psm.Gem(),
		dai:       psm.Dai(),
		conv:      conv,
		recipient: Unarmed{},
	}
	be.Register(c)
	err = c.exec(ctx, "deploy", func(ctx context.Context) ([]*Event, error) {
		ev := c.bootstrap(deployer)
		if err := c.dai.Approve(ctx, c.id, psm.Id(), program.MaxUint256); err != nil {
			return nil, err
		}
		return []*Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *OutputConduit) Psm() program.StabilityModule {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.psm
}

func (c *OutputConduit) Gem() program.Token {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.gem
}

func (c *OutputConduit) Dai() program.Token {
	return c.dai
}

func (c *OutputConduit) Recipient() Recipient {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.recipient
}

func (c *OutputConduit) QuitTo() solana.PublicKey {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.quitTo
}

func (c *OutputConduit) converter() *conversion.Converter {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.conv
}

func (c *OutputConduit) Hope(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Grant(ctx, caller, Operator, who)
}

func (c *OutputConduit) Nope(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Revoke(ctx, caller, Operator, who)
}

func (c *OutputConduit) Kiss(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Grant(ctx, caller, Whitelist, who)
}

func (c *OutputConduit) Diss(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Revoke(ctx, caller, Whitelist, who)
}

// Pick arms the conduit for one push to who.
func (c *OutputConduit) Pick(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.exec(ctx, "pick", func(ctx context.Context) ([]*Event, error) {
		return pick(c.base, &c.recipient, caller, who)
	})
}

func pick(b *base, recipient *Recipient, caller solana.PublicKey, who solana.PublicKey) ([]*Event, error) {
	if err := b.requireOperator(caller); err != nil {
		return nil, err
	}
	if program.IsZero(who) {
		return nil, ErrInvalidTo
	}
	if !b.roles.Contains(Whitelist, who) {
		return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, who)
	}
	b.lock.RLock()
	prev := *recipient
	b.lock.RUnlock()
	b.mutate(func() { *recipient = Armed{To: who} }, func() { *recipient = prev })
	ev := b.event(EventPick, caller)
	ev.Target = who
	return []*Event{ev}, nil
}

// disarm clears the recipient and returns who it was armed for.
func disarm(b *base, recipient *Recipient) (solana.PublicKey, bool) {
	b.lock.RLock()
	prev := *recipient
	b.lock.RUnlock()
	to, ok := armedTo(prev)
	if !ok {
		return to, false
	}
	b.mutate(func() { *recipient = Unarmed{} }, func() { *recipient = prev })
	return to, true
}

// File sets "quitTo" or "psm".
func (c *OutputConduit) File(ctx context.Context, caller solana.PublicKey, what string, value interface{}) error {
	return c.exec(ctx, "file", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireAdmin(caller); err != nil {
			return nil, err
		}
		switch what {
		case "quitTo":
			addr, err := addressValue(value)
			if err != nil {
				return nil, err
			}
			if program.IsZero(addr) {
				return nil, ErrInvalidQuitTo
			}
			prev := c.QuitTo()
			c.mutate(func() { c.quitTo = addr }, func() { c.quitTo = prev })
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

// filePsm may change the gem, since the conduit only holds unit-coin.
func (c *OutputConduit) filePsm(ctx context.Context, next program.StabilityModule) error {
	if next.Dai().Id() != c.dai.Id() {
		return fmt.Errorf("%w: %s", ErrWrongDai, next.Dai().Id())
	}
	conv, err := conversion.NewConverter(next.Gem().Decimals())
	if err != nil {
		return err
	}
	prev, prevGem, prevConv := c.Psm(), c.Gem(), c.converter()
	if err := c.dai.Approve(ctx, c.id, prev.Id(), new(big.Int)); err != nil {
		return err
	}
	if err := c.dai.Approve(ctx, c.id, next.Id(), program.MaxUint256); err != nil {
		return err
	}
	c.mutate(func() {
		c.psm, c.gem, c.conv = next, next.Gem(), conv
	}, func() {
		c.psm, c.gem, c.conv = prev, prevGem, prevConv
	})
	return nil
}

// Push spends the whole unit-coin balance on gem for the picked recipient.
func (c *OutputConduit) Push(ctx context.Context, caller solana.PublicKey) (*big.Int, error) {
	return c.push(ctx, caller, nil)
}

// PushAmount spends at most wad and returns the gem delivered.
func (c *OutputConduit) PushAmount(ctx context.Context, caller solana.PublicKey, wad *big.Int) (*big.Int, error) {
	if wad == nil || wad.Sign() < 0 {
		return nil, fmt.Errorf("%w: wad %v", ErrInvalidValue, wad)
	}
	return c.push(ctx, caller, wad)
}

func (c *OutputConduit) push(ctx context.Context, caller solana.PublicKey, wad *big.Int) (*big.Int, error) {
	var bought *big.Int
	err := c.exec(ctx, "push", func(ctx context.Context) ([]*Event, error) {
		if err := c.requirePusher(caller); err != nil {
			return nil, err
		}
		if _, ok := armedTo(c.Recipient()); !ok {
			return nil, ErrNotPicked
		}
		ev, gemAmt, err := buy(ctx, c.base, c.dai, c.Psm(), c.converter(), &c.recipient, caller, wad)
		if err != nil {
			return nil, err
		}
		bought = gemAmt
		return []*Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return bought, nil
}

// buy converts wad (nil for the whole balance) into gem for the armed recipient. The
// recipient is cleared before the stability module is called.
func buy(ctx context.Context, b *base, dai program.Token, psm program.StabilityModule, conv *conversion.Converter, recipient *Recipient, caller solana.PublicKey, wad *big.Int) (*Event, *big.Int, error) {
	balance := dai.BalanceOf(b.id)
	if wad == nil {
		wad = balance
	}
	if wad.Cmp(balance) > 0 {
		return nil, nil, fmt.Errorf("%w: holds %s, push %s", ErrInsufficientBalance, balance, wad)
	}
	gemAmt, err := conv.CoinToGem(wad, psm.Tout())
	if err != nil {
		return nil, nil, err
	}
	if gemAmt.Sign() == 0 {
		return nil, nil, ErrInsufficientSwap
	}
	to, _ := disarm(b, recipient)
	pre := dai.BalanceOf(b.id)
	if _, err := psm.BuyGem(ctx, b.id, to, gemAmt); err != nil {
		return nil, nil, err
	}
	spent, err := conversion.Sub(pre, dai.BalanceOf(b.id))
	if err != nil {
		return nil, nil, err
	}
	ev := b.event(EventPush, caller)
	ev.Target = to
	ev.Pool = psm.Id()
	ev.Token = psm.Gem().Id()
	ev.Amount = gemAmt
	ev.Wad = spent
	return ev, gemAmt, nil
}

func (c *OutputConduit) Quit(ctx context.Context, caller solana.PublicKey) error {
	return c.exec(ctx, "quit", func(ctx context.Context) ([]*Event, error) {
		return c.quit(ctx, caller, c.dai, c.QuitTo(), nil)
	})
}

func (c *OutputConduit) QuitAmount(ctx context.Context, caller solana.PublicKey, wad *big.Int) error {
	if wad == nil {
		return fmt.Errorf("%w: nil amount", ErrInvalidValue)
	}
	return c.exec(ctx, "quit", func(ctx context.Context) ([]*Event, error) {
		return c.quit(ctx, caller, c.dai, c.QuitTo(), wad)
	})
}

func (c *OutputConduit) Yank(ctx context.Context, caller solana.PublicKey, tok program.Token, usr solana.PublicKey, amount *big.Int) error {
	return c.exec(ctx, "yank", func(ctx context.Context) ([]*Event, error) {
		return c.yank(ctx, caller, tok, usr, amount)
	})
}

// ExpectedGemAmt is the gem a push of wad would deliver at the current tout.
func (c *OutputConduit) ExpectedGemAmt(wad *big.Int) (*big.Int, error) {
	return c.converter().CoinToGem(wad, c.Psm().Tout())
}

// RequiredDaiWad is the unit-coin a push must spend to deliver gemAmt.
func (c *OutputConduit) RequiredDaiWad(gemAmt *big.Int) (*big.Int, error) {
	return c.converter().RequiredDaiWad(gemAmt, c.Psm().Tout())
}
