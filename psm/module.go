// Package psm is an in-memory stability module. It charges fixed tin/tout fees and
// enforces a debt ceiling on locked gem; fee governance is left to the real module.
package psm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/conversion"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrCeilingExceeded = errors.New("psm: ceiling-exceeded")
	ErrInvalidFee      = errors.New("psm: invalid-fee")
)

// Mintable is the unit-coin ledger the module mints into and burns from.
type Mintable interface {
	program.Token
	Mint(ctx context.Context, to solana.PublicKey, amount *big.Int) error
	Burn(ctx context.Context, from solana.PublicKey, amount *big.Int) error
}

type Module struct {
	lock    sync.RWMutex
	be      program.Executor
	journal *backend.Journal
	id      solana.PublicKey
	gemJoin solana.PublicKey
	gem     program.Token
	dai     Mintable
	conv    *conversion.Converter
	tin     *big.Int
	tout    *big.Int
	line    *big.Int
	art     *big.Int
}

var _ program.StabilityModule = (*Module)(nil)

// NewModule binds a module to one gem/dai pair. line caps the 18-decimal value of gem
// the module will hold; nil means unlimited.
func NewModule(be program.Executor, id solana.PublicKey, gemJoin solana.PublicKey, gem program.Token, dai Mintable, tin *big.Int, tout *big.Int, line *big.Int) (*Module, error) {
	conv, err := conversion.NewConverter(gem.Decimals())
	if err != nil {
		return nil, err
	}
	if err := validFee(tin); err != nil {
		return nil, err
	}
	if err := validFee(tout); err != nil {
		return nil, err
	}
	if line == nil {
		line = program.MaxUint256
	}
	m := &Module{
		be:      be,
		journal: backend.NewJournal(),
		id:      id,
		gemJoin: gemJoin,
		gem:     gem,
		dai:     dai,
		conv:    conv,
		tin:     new(big.Int).Set(tin),
		tout:    new(big.Int).Set(tout),
		line:    new(big.Int).Set(line),
		art:     new(big.Int),
	}
	be.Register(m)
	return m, nil
}

func validFee(fee *big.Int) error {
	if fee == nil || fee.Sign() < 0 || fee.Cmp(program.WAD) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFee, fee)
	}
	return nil
}

func (m *Module) Name() string {
	return "psm"
}

func (m *Module) Id() solana.PublicKey {
	return m.id
}

func (m *Module) GemJoin() solana.PublicKey {
	return m.gemJoin
}

func (m *Module) Gem() program.Token {
	return m.gem
}

func (m *Module) Dai() program.Token {
	return m.dai
}

func (m *Module) Tin() *big.Int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return new(big.Int).Set(m.tin)
}

func (m *Module) Tout() *big.Int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return new(big.Int).Set(m.tout)
}

func (m *Module) Line() *big.Int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return new(big.Int).Set(m.line)
}

// Art is the 18-decimal value of gem currently locked.
func (m *Module) Art() *big.Int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return new(big.Int).Set(m.art)
}

func (m *Module) Snapshot() int {
	return m.journal.Snapshot()
}

func (m *Module) RevertToSnapshot(id int) {
	m.journal.RevertToSnapshot(id)
}

func (m *Module) Commit() {
	m.journal.Commit()
}

func (m *Module) set(field **big.Int, value *big.Int) {
	m.lock.Lock()
	prev := *field
	*field = value
	m.lock.Unlock()
	m.journal.Append(func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		*field = prev
	})
}

func (m *Module) File(ctx context.Context, what string, value *big.Int) error {
	return m.be.Atomic(ctx, func(ctx context.Context) error {
		switch what {
		case "tin":
			if err := validFee(value); err != nil {
				return err
			}
			m.set(&m.tin, new(big.Int).Set(value))
		case "tout":
			if err := validFee(value); err != nil {
				return err
			}
			m.set(&m.tout, new(big.Int).Set(value))
		case "line":
			m.set(&m.line, new(big.Int).Set(value))
		default:
			return fmt.Errorf("psm: unrecognised param %q", what)
		}
		return nil
	})
}

func (m *Module) SellGem(ctx context.Context, caller solana.PublicKey, usr solana.PublicKey, gemAmt *big.Int) (*big.Int, error) {
	var daiAmt *big.Int
	err := m.be.Atomic(ctx, func(ctx context.Context) error {
		gemAmt18, err := m.conv.To18(gemAmt)
		if err != nil {
			return err
		}
		fee, err := conversion.MulDiv(gemAmt18, m.Tin(), program.WAD)
		if err != nil {
			return err
		}
		out, err := conversion.Sub(gemAmt18, fee)
		if err != nil {
			return err
		}
		art, err := conversion.Add(m.Art(), gemAmt18)
		if err != nil {
			return err
		}
		if art.Cmp(m.Line()) > 0 {
			return fmt.Errorf("%w: %s over line %s", ErrCeilingExceeded, art, m.Line())
		}
		m.set(&m.art, art)
		if err := m.gem.TransferFrom(ctx, m.gemJoin, caller, m.gemJoin, gemAmt); err != nil {
			return err
		}
		if err := m.dai.Mint(ctx, usr, out); err != nil {
			return err
		}
		if fee.Sign() > 0 {
			if err := m.dai.Mint(ctx, m.id, fee); err != nil {
				return err
			}
		}
		daiAmt = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return daiAmt, nil
}

func (m *Module) BuyGem(ctx context.Context, caller solana.PublicKey, usr solana.PublicKey, gemAmt *big.Int) (*big.Int, error) {
	var daiInWad *big.Int
	err := m.be.Atomic(ctx, func(ctx context.Context) error {
		gemAmt18, err := m.conv.To18(gemAmt)
		if err != nil {
			return err
		}
		daiIn, err := m.conv.RequiredDaiWad(gemAmt, m.Tout())
		if err != nil {
			return err
		}
		art, err := conversion.Sub(m.Art(), gemAmt18)
		if err != nil {
			return fmt.Errorf("psm: gem reserve exhausted: %w", err)
		}
		m.set(&m.art, art)
		if err := m.dai.TransferFrom(ctx, m.id, caller, m.id, daiIn); err != nil {
			return err
		}
		if err := m.dai.Burn(ctx, m.id, gemAmt18); err != nil {
			return err
		}
		if err := m.gem.Transfer(ctx, m.gemJoin, usr, gemAmt); err != nil {
			return err
		}
		daiInWad = daiIn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return daiInWad, nil
}
