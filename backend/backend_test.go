package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type counter struct {
	journal *Journal
	value   int
}

func (c *counter) set(v int) {
	prev := c.value
	c.value = v
	c.journal.Append(func() { c.value = prev })
}

func (c *counter) Snapshot() int           { return c.journal.Snapshot() }
func (c *counter) RevertToSnapshot(id int) { c.journal.RevertToSnapshot(id) }
func (c *counter) Commit()                 { c.journal.Commit() }

func newCounter(be *Backend) *counter {
	c := &counter{journal: NewJournal()}
	be.Register(c)
	return c
}

func TestBackend_AtomicCommit(t *testing.T) {
	be := NewBackend(nil)
	c := newCounter(be)
	err := be.Atomic(context.Background(), func(ctx context.Context) error {
		c.set(1)
		c.set(2)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, c.value)
	require.Equal(t, uint64(1), be.Height())
	require.Equal(t, 0, c.journal.Snapshot())
}

func TestBackend_AtomicRevert(t *testing.T) {
	be := NewBackend(nil)
	c := newCounter(be)
	c.set(7)
	c.journal.Commit()
	boom := errors.New("boom")
	err := be.Atomic(context.Background(), func(ctx context.Context) error {
		c.set(8)
		c.set(9)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 7, c.value)
	require.Equal(t, uint64(0), be.Height())
}

func TestBackend_NestedRevertKeepsOuter(t *testing.T) {
	be := NewBackend(nil)
	c := newCounter(be)
	err := be.Atomic(context.Background(), func(ctx context.Context) error {
		c.set(1)
		inner := be.Atomic(ctx, func(ctx context.Context) error {
			c.set(2)
			return errors.New("inner")
		})
		require.Error(t, inner)
		require.Equal(t, 1, c.value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.value)
}

func TestBackend_PanicReverts(t *testing.T) {
	be := NewBackend(nil)
	c := newCounter(be)
	err := be.Atomic(context.Background(), func(ctx context.Context) error {
		c.set(5)
		panic("bad state")
	})
	require.Error(t, err)
	require.Equal(t, 0, c.value)
}

func TestBackend_CanceledContext(t *testing.T) {
	be := NewBackend(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := be.Atomic(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestBackend_OnCommit(t *testing.T) {
	be := NewBackend(nil)
	c := newCounter(be)
	fired := make([]string, 0)
	err := be.Atomic(context.Background(), func(ctx context.Context) error {
		c.set(1)
		be.OnCommit(ctx, func() { fired = append(fired, "outer") })
		_ = be.Atomic(ctx, func(ctx context.Context) error {
			be.OnCommit(ctx, func() { fired = append(fired, "reverted") })
			return errors.New("inner")
		})
		require.Empty(t, fired)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"outer"}, fired)

	err = be.Atomic(context.Background(), func(ctx context.Context) error {
		be.OnCommit(ctx, func() { fired = append(fired, "failed") })
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, []string{"outer"}, fired)

	be.OnCommit(context.Background(), func() { fired = append(fired, "now") })
	require.Equal(t, []string{"outer", "now"}, fired)
}
