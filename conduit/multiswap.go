package conduit

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

// MultiSwapOutputConduit is an output conduit that can route through any stability
// module sharing its unit-coin. Admins clap modules in; an operator hooks one before
// each push.
type MultiSwapOutputConduit struct {
	*base
	dai       program.Token
	pals      map[solana.PublicKey]program.StabilityModule
	binding   Binding
	recipient Recipient
	quitTo    solana.PublicKey
}

func NewMultiSwapOutputConduit(ctx context.Context, be program.Executor, id solana.PublicKey, deployer solana.PublicKey, dai program.Token, cb Callback) (*MultiSwapOutputConduit, error) {
	if program.IsZero(id) || program.IsZero(deployer) {
		return nil, fmt.Errorf("%w: conduit and deployer must be set", ErrInvalidAddress)
	}
	if dai.Decimals() != program.CoinDecimals {
		return nil, fmt.Errorf("%w: unit-coin has %d decimals", ErrWrongDai, dai.Decimals())
	}
	c := &MultiSwapOutputConduit{
		base:      newBase(be, id, program.MultiSwap, cb, Pusher, Operator, Whitelist),
		dai:       dai,
		pals:      make(map[solana.PublicKey]program.StabilityModule),
		binding:   Unhooked{},
		recipient: Unarmed{},
	}
	be.Register(c)
	err := c.exec(ctx, "deploy", func(ctx context.Context) ([]*Event, error) {
		return []*Event{c.bootstrap(deployer)}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MultiSwapOutputConduit) Dai() program.Token {
	return c.dai
}

func (c *MultiSwapOutputConduit) Recipient() Recipient {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.recipient
}

func (c *MultiSwapOutputConduit) Binding() Binding {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.binding
}

func (c *MultiSwapOutputConduit) QuitTo() solana.PublicKey {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.quitTo
}

func (c *MultiSwapOutputConduit) Pal(id solana.PublicKey) (program.StabilityModule, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	psm, ok := c.pals[id]
	return psm, ok
}

// Pals returns the approved stability modules in key order.
func (c *MultiSwapOutputConduit) Pals() []program.StabilityModule {
	c.lock.RLock()
	pals := make([]program.StabilityModule, 0, len(c.pals))
	for _, psm := range c.pals {
		pals = append(pals, psm)
	}
	c.lock.RUnlock()
	sort.Slice(pals, func(i, j int) bool {
		a, b := pals[i].Id(), pals[j].Id()
		return bytes.Compare(a[:], b[:]) < 0
	})
	return pals
}

func (c *MultiSwapOutputConduit) Hope(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Grant(ctx, caller, Operator, who)
}

func (c *MultiSwapOutputConduit) Nope(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Revoke(ctx, caller, Operator, who)
}

func (c *MultiSwapOutputConduit) Kiss(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Grant(ctx, caller, Whitelist, who)
}

func (c *MultiSwapOutputConduit) Diss(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.Revoke(ctx, caller, Whitelist, who)
}

// Clap approves psm for routing. It grants no allowance; that happens on hook.
func (c *MultiSwapOutputConduit) Clap(ctx context.Context, caller solana.PublicKey, psm program.StabilityModule) error {
	return c.exec(ctx, "clap", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireAdmin(caller); err != nil {
			return nil, err
		}
		if psm.Dai().Id() != c.dai.Id() {
			return nil, fmt.Errorf("%w: %s", ErrWrongDai, psm.Dai().Id())
		}
		if _, err := conversion.NewConverter(psm.Gem().Decimals()); err != nil {
			return nil, err
		}
		id := psm.Id()
		if _, ok := c.Pal(id); ok {
			return nil, nil
		}
		c.mutate(func() { c.pals[id] = psm }, func() { delete(c.pals, id) })
		ev := c.event(EventClap, caller)
		ev.Pool = id
		return []*Event{ev}, nil
	})
}

// Slap removes a module from routing, revokes its allowance and unhooks it if needed.
func (c *MultiSwapOutputConduit) Slap(ctx context.Context, caller solana.PublicKey, id solana.PublicKey) error {
	return c.exec(ctx, "slap", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireAdmin(caller); err != nil {
			return nil, err
		}
		psm, ok := c.Pal(id)
		if !ok {
			return nil, nil
		}
		c.mutate(func() { delete(c.pals, id) }, func() { c.pals[id] = psm })
		if err := c.dai.Approve(ctx, c.id, id, new(big.Int)); err != nil {
			return nil, err
		}
		if hooked, ok := c.Binding().(Hooked); ok && hooked.Psm.Id() == id {
			c.unhook()
		}
		ev := c.event(EventSlap, caller)
		ev.Pool = id
		return []*Event{ev}, nil
	})
}

// Hook binds the next push to an approved module, moving the unit-coin allowance to it.
func (c *MultiSwapOutputConduit) Hook(ctx context.Context, caller solana.PublicKey, id solana.PublicKey) error {
	return c.exec(ctx, "hook", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireOperator(caller); err != nil {
			return nil, err
		}
		psm, ok := c.Pal(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotPal, id)
		}
		conv, err := conversion.NewConverter(psm.Gem().Decimals())
		if err != nil {
			return nil, err
		}
		prev := c.Binding()
		if hooked, ok := prev.(Hooked); ok && hooked.Psm.Id() != id {
			if err := c.dai.Approve(ctx, c.id, hooked.Psm.Id(), new(big.Int)); err != nil {
				return nil, err
			}
		}
		if err := c.dai.Approve(ctx, c.id, id, program.MaxUint256); err != nil {
			return nil, err
		}
		next := Hooked{Psm: psm, Conv: conv}
		c.mutate(func() { c.binding = next }, func() { c.binding = prev })
		ev := c.event(EventHook, caller)
		ev.Pool = id
		return []*Event{ev}, nil
	})
}

func (c *MultiSwapOutputConduit) unhook() {
	prev := c.Binding()
	c.mutate(func() { c.binding = Unhooked{} }, func() { c.binding = prev })
}

func (c *MultiSwapOutputConduit) Pick(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return c.exec(ctx, "pick", func(ctx context.Context) ([]*Event, error) {
		return pick(c.base, &c.recipient, caller, who)
	})
}

func (c *MultiSwapOutputConduit) File(ctx context.Context, caller solana.PublicKey, what string, value interface{}) error {
	return c.exec(ctx, "file", func(ctx context.Context) ([]*Event, error) {
		if err := c.requireAdmin(caller); err != nil {
			return nil, err
		}
		if what != "quitTo" {
			return nil, fmt.Errorf("%w: %q", ErrUnrecognisedParam, what)
		}
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
	})
}

func (c *MultiSwapOutputConduit) Push(ctx context.Context, caller solana.PublicKey) (*big.Int, error) {
	return c.push(ctx, caller, nil)
}

func (c *MultiSwapOutputConduit) PushAmount(ctx context.Context, caller solana.PublicKey, wad *big.Int) (*big.Int, error) {
	if wad == nil || wad.Sign() < 0 {
		return nil, fmt.Errorf("%w: wad %v", ErrInvalidValue, wad)
	}
	return c.push(ctx, caller, wad)
}

// push consumes both the pick and the hook.
func (c *MultiSwapOutputConduit) push(ctx context.Context, caller solana.PublicKey, wad *big.Int) (*big.Int, error) {
	var bought *big.Int
	err := c.exec(ctx, "push", func(ctx context.Context) ([]*Event, error) {
		if err := c.requirePusher(caller); err != nil {
			return nil, err
		}
		if _, ok := armedTo(c.Recipient()); !ok {
			return nil, ErrNotPicked
		}
		hooked, ok := c.Binding().(Hooked)
		if !ok {
			return nil, ErrNotHooked
		}
		c.unhook()
		ev, gemAmt, err := buy(ctx, c.base, c.dai, hooked.Psm, hooked.Conv, &c.recipient, caller, wad)
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

func (c *MultiSwapOutputConduit) Quit(ctx context.Context, caller solana.PublicKey) error {
	return c.exec(ctx, "quit", func(ctx context.Context) ([]*Event, error) {
		return c.quit(ctx, caller, c.dai, c.QuitTo(), nil)
	})
}

func (c *MultiSwapOutputConduit) QuitAmount(ctx context.Context, caller solana.PublicKey, wad *big.Int) error {
	if wad == nil {
		return fmt.Errorf("%w: nil amount", ErrInvalidValue)
	}
	return c.exec(ctx, "quit", func(ctx context.Context) ([]*Event, error) {
		return c.quit(ctx, caller, c.dai, c.QuitTo(), wad)
	})
}

func (c *MultiSwapOutputConduit) Yank(ctx context.Context, caller solana.PublicKey, tok program.Token, usr solana.PublicKey, amount *big.Int) error {
	return c.exec(ctx, "yank", func(ctx context.Context) ([]*Event, error) {
		return c.yank(ctx, caller, tok, usr, amount)
	})
}

// ExpectedGemAmt quotes against the hooked module.
func (c *MultiSwapOutputConduit) ExpectedGemAmt(wad *big.Int) (*big.Int, error) {
	hooked, ok := c.Binding().(Hooked)
	if !ok {
		return nil, ErrNotHooked
	}
	return hooked.Conv.CoinToGem(wad, hooked.Psm.Tout())
}

func (c *MultiSwapOutputConduit) RequiredDaiWad(gemAmt *big.Int) (*big.Int, error) {
	hooked, ok := c.Binding().(Hooked)
	if !ok {
		return nil, ErrNotHooked
	}
	return hooked.Conv.RequiredDaiWad(gemAmt, hooked.Psm.Tout())
}
