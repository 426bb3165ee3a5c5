package statelisten

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/egaotan/rwa-conduit/dingsdk"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Recoverable is a conduit with a shutdown escape hatch.
type Recoverable interface {
	Id() solana.PublicKey
	Recovery() solana.PublicKey
	ApproveRecovery(ctx context.Context, caller solana.PublicKey) error
}

type Snapshotter interface {
	StoreSnapshot(st *conduit.State) error
}

// StateListen snapshots conduit state as it changes and, once the accounting ledger
// shuts down, opens recovery on every conduit that has one.
type StateListen struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.SugaredLogger
	vat      program.Accounting
	keeper   solana.PublicKey
	store    Snapshotter
	dsdk     dingsdk.Notifier
	interval time.Duration
	lock     sync.Mutex
	conduits []conduit.Conduit
	states   map[solana.PublicKey][]byte
	caged    bool
}

func NewStateListen(ctx context.Context, interval time.Duration, vat program.Accounting, keeper solana.PublicKey, store Snapshotter, dsdk dingsdk.Notifier, log *zap.SugaredLogger) *StateListen {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	sl := &StateListen{
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		vat:      vat,
		keeper:   keeper,
		store:    store,
		dsdk:     dsdk,
		interval: interval,
		states:   make(map[solana.PublicKey][]byte),
	}
	return sl
}

func (sl *StateListen) Watch(c conduit.Conduit) {
	sl.lock.Lock()
	defer sl.lock.Unlock()
	sl.conduits = append(sl.conduits, c)
}

func (sl *StateListen) Start() {
	sl.log.Infof("start state listen......")
	sl.wg.Add(1)
	go sl.listen()
}

func (sl *StateListen) Stop() {
	sl.log.Infof("stop state listen......")
	sl.cancel()
	sl.wg.Wait()
}

func (sl *StateListen) listen() {
	defer sl.wg.Done()
	timer2 := time.NewTicker(sl.interval)
	defer timer2.Stop()
	for {
		select {
		case <-timer2.C:
			sl.Check(sl.ctx)
		case <-sl.ctx.Done():
			return
		}
	}
}

func (sl *StateListen) Caged() bool {
	sl.lock.Lock()
	defer sl.lock.Unlock()
	return sl.caged
}

func (sl *StateListen) Check(ctx context.Context) {
	sl.DumpState()
	sl.lock.Lock()
	first := !sl.caged && !sl.vat.Live()
	if first {
		sl.caged = true
	}
	conduits := append([]conduit.Conduit(nil), sl.conduits...)
	sl.lock.Unlock()
	if first {
		sl.recover(ctx, conduits)
		sl.DumpState()
	}
}

// DumpState stores the state of every conduit whose state changed since the last dump.
func (sl *StateListen) DumpState() {
	sl.lock.Lock()
	defer sl.lock.Unlock()
	for _, c := range sl.conduits {
		st := c.State()
		data, err := json.Marshal(st)
		if err != nil {
			sl.log.Errorf("marshal state of %s: %v", c.Id(), err)
			continue
		}
		if string(sl.states[c.Id()]) == string(data) {
			continue
		}
		if sl.store != nil {
			if err := sl.store.StoreSnapshot(st); err != nil {
				sl.log.Warnf("store state of %s: %v", c.Id(), err)
				continue
			}
		}
		sl.states[c.Id()] = data
	}
}

func (sl *StateListen) recover(ctx context.Context, conduits []conduit.Conduit) {
	content := "vat caged, recovery: \n"
	for _, c := range conduits {
		r, ok := c.(Recoverable)
		if !ok {
			continue
		}
		if err := r.ApproveRecovery(ctx, sl.keeper); err != nil {
			sl.log.Errorf("approve recovery on %s: %v", r.Id(), err)
			content += fmt.Sprintf("%s: failed, %v;\n", r.Id(), err)
			continue
		}
		sl.log.Infof("approved recovery on %s to %s", r.Id(), r.Recovery())
		content += fmt.Sprintf("%s: approved to %s;\n", r.Id(), r.Recovery())
	}
	if _, err := sl.dsdk.Notify(ctx, dingsdk.Text(content, true)); err != nil {
		sl.log.Warnf("notify shutdown: %v", err)
	}
}
