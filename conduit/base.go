// Package conduit holds the custody accounts that sit between a real-world-asset vault
// and its stability modules. Each operation runs as one atomic unit of the executor and
// publishes its events only after it commits.
package conduit

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type base struct {
	lock    sync.RWMutex
	be      program.Executor
	journal *backend.Journal
	id      solana.PublicKey
	kind    string
	roles   *Roles
	cb      Callback
	log     *zap.SugaredLogger
	busy    bool
}

func newBase(be program.Executor, id solana.PublicKey, kind string, cb Callback, roles ...Role) *base {
	return &base{
		be:      be,
		journal: backend.NewJournal(),
		id:      id,
		kind:    kind,
		roles:   NewRoles(roles...),
		cb:      cb,
		log:     zap.NewNop().Sugar(),
	}
}

func (b *base) Id() solana.PublicKey {
	return b.id
}

func (b *base) Kind() string {
	return b.kind
}

func (b *base) Roles() *Roles {
	return b.roles
}

func (b *base) SetLogger(log *zap.SugaredLogger) {
	if log != nil {
		b.log = log
	}
}

func (b *base) Snapshot() int {
	return b.journal.Snapshot()
}

func (b *base) RevertToSnapshot(id int) {
	b.journal.RevertToSnapshot(id)
}

func (b *base) Commit() {
	b.journal.Commit()
}

// mutate applies a change to local state and journals its inverse.
func (b *base) mutate(apply func(), undo func()) {
	b.lock.Lock()
	apply()
	b.lock.Unlock()
	b.journal.Append(func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		undo()
	})
}

// exec runs fn as one atomic operation. A conduit operation reached again while one of
// its operations is in flight fails instead of running nested.
func (b *base) exec(ctx context.Context, name string, fn func(ctx context.Context) ([]*Event, error)) error {
	var events []*Event
	err := b.be.Atomic(ctx, func(ctx context.Context) error {
		if b.busy {
			return ErrReentrant
		}
		b.busy = true
		defer func() {
			b.busy = false
		}()
		evs, err := fn(ctx)
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		b.log.Warnf("%s %s %s failed: %v", b.kind, b.id, name, err)
		return err
	}
	if len(events) > 0 {
		b.be.OnCommit(ctx, func() {
			b.publish(events)
		})
	}
	return nil
}

func (b *base) publish(events []*Event) {
	for _, ev := range events {
		b.log.Infof("%s %s: %s target %s amount %v wad %v", b.kind, b.id, ev.Kind, ev.Target, ev.Amount, ev.Wad)
		if b.cb != nil {
			b.cb.OnEvent(ev)
		}
	}
}

func (b *base) event(kind EventKind, caller solana.PublicKey) *Event {
	return &Event{
		Conduit: b.id,
		Kind:    kind,
		Caller:  caller,
	}
}

func (b *base) requireAdmin(caller solana.PublicKey) error {
	if !b.roles.Contains(Admin, caller) {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, caller)
	}
	return nil
}

func (b *base) requirePusher(caller solana.PublicKey) error {
	if !b.roles.Contains(Pusher, caller) {
		return fmt.Errorf("%w: %s", ErrNotPusher, caller)
	}
	return nil
}

func (b *base) requireOperator(caller solana.PublicKey) error {
	if !b.roles.Contains(Operator, caller) {
		return fmt.Errorf("%w: %s", ErrNotOperator, caller)
	}
	return nil
}

// insertRole is journaled. It reports whether the set changed.
func (b *base) insertRole(role Role, who solana.PublicKey) (bool, error) {
	rs := b.roles.Set(role)
	if rs == nil {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}
	if !rs.Insert(who) {
		return false, nil
	}
	b.journal.Append(func() {
		rs.Remove(who)
	})
	return true, nil
}

func (b *base) removeRole(role Role, who solana.PublicKey) (bool, error) {
	rs := b.roles.Set(role)
	if rs == nil {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}
	if !rs.Remove(who) {
		return false, nil
	}
	b.journal.Append(func() {
		rs.Insert(who)
	})
	return true, nil
}

// Grant adds who to role. Granting an existing member changes nothing and emits nothing.
func (b *base) Grant(ctx context.Context, caller solana.PublicKey, role Role, who solana.PublicKey) error {
	return b.exec(ctx, "grant", func(ctx context.Context) ([]*Event, error) {
		if err := b.requireAdmin(caller); err != nil {
			return nil, err
		}
		changed, err := b.insertRole(role, who)
		if err != nil || !changed {
			return nil, err
		}
		ev := b.event(grantKind[role], caller)
		ev.Target = who
		return []*Event{ev}, nil
	})
}

// Revoke removes who from role. An admin may revoke itself.
func (b *base) Revoke(ctx context.Context, caller solana.PublicKey, role Role, who solana.PublicKey) error {
	return b.exec(ctx, "revoke", func(ctx context.Context) ([]*Event, error) {
		if err := b.requireAdmin(caller); err != nil {
			return nil, err
		}
		changed, err := b.removeRole(role, who)
		if err != nil || !changed {
			return nil, err
		}
		ev := b.event(revokeKind[role], caller)
		ev.Target = who
		return []*Event{ev}, nil
	})
}

func (b *base) Rely(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return b.Grant(ctx, caller, Admin, who)
}

func (b *base) Deny(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return b.Revoke(ctx, caller, Admin, who)
}

func (b *base) Mate(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return b.Grant(ctx, caller, Pusher, who)
}

func (b *base) Hate(ctx context.Context, caller solana.PublicKey, who solana.PublicKey) error {
	return b.Revoke(ctx, caller, Pusher, who)
}

// bootstrap makes deployer the first admin inside the constructor's operation.
func (b *base) bootstrap(deployer solana.PublicKey) *Event {
	b.roles.Set(Admin).Insert(deployer)
	b.journal.Append(func() {
		b.roles.Set(Admin).Remove(deployer)
	})
	ev := b.event(EventRely, deployer)
	ev.Target = deployer
	return ev
}

// yank moves any token out of the conduit. Admin only.
func (b *base) yank(ctx context.Context, caller solana.PublicKey, tok program.Token, usr solana.PublicKey, amount *big.Int) ([]*Event, error) {
	if err := b.requireAdmin(caller); err != nil {
		return nil, err
	}
	if program.IsZero(usr) {
		return nil, fmt.Errorf("%w: yank to the zero address", ErrInvalidAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %v", ErrInvalidValue, amount)
	}
	if err := tok.Transfer(ctx, b.id, usr, amount); err != nil {
		return nil, err
	}
	ev := b.event(EventYank, caller)
	ev.Target = usr
	ev.Token = tok.Id()
	ev.Amount = new(big.Int).Set(amount)
	return []*Event{ev}, nil
}

// quit sends amount of tok to quitTo; a nil amount means the whole balance.
func (b *base) quit(ctx context.Context, caller solana.PublicKey, tok program.Token, quitTo solana.PublicKey, amount *big.Int) ([]*Event, error) {
	if err := b.requirePusher(caller); err != nil {
		return nil, err
	}
	if program.IsZero(quitTo) {
		return nil, ErrInvalidQuitTo
	}
	balance := tok.BalanceOf(b.id)
	if amount == nil {
		amount = balance
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %v", ErrInvalidValue, amount)
	}
	if amount.Cmp(balance) > 0 {
		return nil, fmt.Errorf("%w: holds %s, quit %s", ErrInsufficientBalance, balance, amount)
	}
	if err := tok.Transfer(ctx, b.id, quitTo, amount); err != nil {
		return nil, err
	}
	ev := b.event(EventQuit, caller)
	ev.Target = quitTo
	ev.Token = tok.Id()
	ev.Amount = new(big.Int).Set(amount)
	return []*Event{ev}, nil
}

func fileEvent(b *base, caller solana.PublicKey, what string, value solana.PublicKey) *Event {
	ev := b.event(EventFile, caller)
	ev.Param = what
	ev.Target = value
	return ev
}

// addressValue accepts the forms a configured address arrives in.
func addressValue(value interface{}) (solana.PublicKey, error) {
	switch v := value.(type) {
	case solana.PublicKey:
		return v, nil
	case string:
		key, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return key, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %T is not an address", ErrInvalidValue, value)
	}
}
