package vat

import (
	"context"
	"errors"
	"sync"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
)

var ErrNotLive = errors.New("vat: not-live")

// Program is the accounting ledger as far as conduits are concerned: a live flag that
// flips once, on emergency shutdown.
type Program struct {
	lock    sync.RWMutex
	be      program.Executor
	journal *backend.Journal
	id      solana.PublicKey
	live    bool
}

var _ program.Accounting = (*Program)(nil)

func NewProgram(be program.Executor, id solana.PublicKey) *Program {
	p := &Program{
		be:      be,
		journal: backend.NewJournal(),
		id:      id,
		live:    true,
	}
	be.Register(p)
	return p
}

func (p *Program) Name() string {
	return "vat"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Live() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.live
}

// Cage triggers emergency shutdown. It cannot be undone once committed.
func (p *Program) Cage(ctx context.Context) error {
	return p.be.Atomic(ctx, func(ctx context.Context) error {
		p.lock.Lock()
		defer p.lock.Unlock()
		if !p.live {
			return ErrNotLive
		}
		p.live = false
		p.journal.Append(func() {
			p.lock.Lock()
			defer p.lock.Unlock()
			p.live = true
		})
		return nil
	})
}

func (p *Program) Snapshot() int {
	return p.journal.Snapshot()
}

func (p *Program) RevertToSnapshot(id int) {
	p.journal.RevertToSnapshot(id)
}

func (p *Program) Commit() {
	p.journal.Commit()
}
