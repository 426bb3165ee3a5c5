package store

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists conduit events and snapshots from a single writer goroutine. Reads go
// straight to the dao.
type Store struct {
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	log          *zap.SugaredLogger
	eventChan    chan *EventRecord
	snapshotChan chan *SnapshotRecord
	dao          *Dao
	seq          uint64
}

func NewStore(ctx context.Context, dao *Dao, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	seq, err := dao.MaxSeq()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		ctx:          ctx,
		cancel:       cancel,
		log:          log,
		eventChan:    make(chan *EventRecord, 32),
		snapshotChan: make(chan *SnapshotRecord, 32),
		dao:          dao,
		seq:          seq,
	}
	return s, nil
}

func (s *Store) Start() {
	s.log.Infof("start store......")
	s.wg.Add(1)
	go s.store()
}

// Stop flushes whatever is queued and waits for the writer.
func (s *Store) Stop() {
	s.log.Infof("stop store......")
	s.cancel()
	s.wg.Wait()
}

func (s *Store) store() {
	defer s.wg.Done()
	for {
		select {
		case record := <-s.eventChan:
			s.saveEvent(record)
		case record := <-s.snapshotChan:
			s.saveSnapshot(record)
		case <-s.ctx.Done():
			s.flush()
			return
		}
	}
}

func (s *Store) flush() {
	for {
		select {
		case record := <-s.eventChan:
			s.saveEvent(record)
		case record := <-s.snapshotChan:
			s.saveSnapshot(record)
		default:
			return
		}
	}
}

func (s *Store) saveEvent(record *EventRecord) {
	if err := s.dao.SaveEvent(record); err != nil {
		s.log.Errorf("save event %s of %s: %v", record.Kind, record.Conduit, err)
	}
}

func (s *Store) saveSnapshot(record *SnapshotRecord) {
	if err := s.dao.SaveSnapshot(record); err != nil {
		s.log.Errorf("save snapshot of %s: %v", record.Conduit, err)
	}
}

// OnEvent queues ev for persistence. It drops the event once the store is stopping.
func (s *Store) OnEvent(ev *conduit.Event) {
	if s.ctx.Err() != nil {
		s.log.Warnf("store stopped, dropping %s of %s", ev.Kind, ev.Conduit)
		return
	}
	record := &EventRecord{
		Id:        uuid.NewString(),
		Seq:       atomic.AddUint64(&s.seq, 1),
		Conduit:   ev.Conduit.String(),
		Kind:      string(ev.Kind),
		Caller:    ev.Caller.String(),
		Target:    ev.Target.String(),
		Pool:      ev.Pool.String(),
		Token:     ev.Token.String(),
		Param:     ev.Param,
		Amount:    amountString(ev.Amount),
		Wad:       amountString(ev.Wad),
		CreatedAt: time.Now(),
	}
	select {
	case s.eventChan <- record:
	case <-s.ctx.Done():
		s.log.Warnf("store stopped, dropping %s of %s", record.Kind, record.Conduit)
	}
}

func (s *Store) StoreSnapshot(st *conduit.State) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	record := &SnapshotRecord{
		Conduit:   st.Id.String(),
		Schema:    st.Schema,
		State:     string(data),
		UpdatedAt: time.Now(),
	}
	select {
	case s.snapshotChan <- record:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Store) GetEvents(conduit string, limit int) ([]*EventRecord, error) {
	return s.dao.SelectEvents(conduit, limit)
}

// GetState decodes the stored snapshot, migrating legacy schemas.
func (s *Store) GetState(id string) (*conduit.State, error) {
	record, err := s.dao.SelectSnapshot(id)
	if err != nil {
		return nil, err
	}
	return conduit.DecodeState([]byte(record.State))
}

func (s *Store) GetSnapshots() ([]*SnapshotRecord, error) {
	return s.dao.SelectSnapshots()
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return ""
	}
	return amount.String()
}
