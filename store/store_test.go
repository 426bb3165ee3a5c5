package store

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var _ conduit.Callback = (*Store)(nil)

func newDao(t *testing.T) *Dao {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dao, err := NewDao(SqliteDialector(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), false)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, dao.Close())
	})
	return dao
}

func TestStore_Events(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
	dao := newDao(t)
	s, err := NewStore(context.Background(), dao, nil)
	require.NoError(t, err)
	s.Start()

	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	s.OnEvent(&conduit.Event{Conduit: a, Kind: conduit.EventRely, Caller: a, Target: a})
	s.OnEvent(&conduit.Event{Conduit: a, Kind: conduit.EventPush, Caller: b, Target: b, Amount: big.NewInt(500), Wad: big.NewInt(495)})
	s.OnEvent(&conduit.Event{Conduit: b, Kind: conduit.EventQuit, Amount: big.NewInt(1)})
	s.Stop()

	events, err := s.GetEvents(a.String(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Push", events[0].Kind)
	assert.Equal(t, "500", events[0].Amount)
	assert.Equal(t, "495", events[0].Wad)
	assert.Equal(t, "Rely", events[1].Kind)
	assert.Equal(t, "", events[1].Amount)
	assert.Len(t, events[0].Id, 36)

	all, err := s.GetEvents("", 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Quit", all[0].Kind)
}

func TestStore_SnapshotUpsert(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
	dao := newDao(t)
	s, err := NewStore(context.Background(), dao, nil)
	require.NoError(t, err)
	s.Start()

	id, to := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	st := &conduit.State{Schema: conduit.SchemaInputV3, Id: id, Admins: []solana.PublicKey{id}}
	require.NoError(t, s.StoreSnapshot(st))
	st.To = to
	require.NoError(t, s.StoreSnapshot(st))
	s.Stop()

	got, err := s.GetState(id.String())
	require.NoError(t, err)
	assert.Equal(t, to, got.To)
	snapshots, err := s.GetSnapshots()
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)

	require.Error(t, s.StoreSnapshot(st))
}

func TestStore_SeqResumes(t *testing.T) {
	dao := newDao(t)
	s, err := NewStore(context.Background(), dao, nil)
	require.NoError(t, err)
	s.Start()
	s.OnEvent(&conduit.Event{Conduit: solana.NewWallet().PublicKey(), Kind: conduit.EventHope})
	s.Stop()

	again, err := NewStore(context.Background(), dao, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.seq)
}
