package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/egaotan/rwa-conduit/dingsdk"
	"github.com/egaotan/rwa-conduit/env"
	"go.uber.org/zap"
)

// Notify turns committed conduit events that move funds into webhook notices.
type Notify struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
	env    *env.Env
	data   chan *conduit.Event
	dsdk   dingsdk.Notifier
}

func NewNotify(ctx context.Context, env *env.Env, dsdk dingsdk.Notifier, log *zap.SugaredLogger) *Notify {
	ctx, cancel := context.WithCancel(ctx)
	notify := &Notify{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		env:    env,
		dsdk:   dsdk,
		data:   make(chan *conduit.Event, 32),
	}
	return notify
}

func (notify *Notify) Start() {
	notify.wg.Add(1)
	go notify.listen()
}

func (notify *Notify) Stop() {
	notify.cancel()
	notify.wg.Wait()
}

// OnEvent never blocks the conduit; notices are dropped when the queue is full.
func (notify *Notify) OnEvent(ev *conduit.Event) {
	switch ev.Kind {
	case conduit.EventPush, conduit.EventQuit, conduit.EventYank, conduit.EventApproveRecovery:
	default:
		return
	}
	select {
	case notify.data <- ev:
	default:
		notify.log.Warnf("notify queue is full, dropping %s of %s", ev.Kind, ev.Conduit)
	}
}

func (notify *Notify) listen() {
	defer notify.wg.Done()
	for {
		select {
		case ev := <-notify.data:
			notify.tryNotify(ev)
		case <-notify.ctx.Done():
			return
		}
	}
}

func (notify *Notify) tryNotify(ev *conduit.Event) {
	text := notify.Text(ev)
	if _, err := notify.dsdk.Notify(notify.ctx, dingsdk.Text(text, ev.Kind == conduit.EventApproveRecovery)); err != nil {
		notify.log.Warnf("notify %s of %s: %v", ev.Kind, ev.Conduit, err)
	}
}

func (notify *Notify) Text(ev *conduit.Event) string {
	items := make([]string, 0)
	items = append(items, fmt.Sprintf("conduit %s: %s;", ev.Conduit, ev.Kind))
	items = append(items, fmt.Sprintf("caller: %s;", ev.Caller))
	if !ev.Target.IsZero() {
		items = append(items, fmt.Sprintf("to: %s;", ev.Target))
	}
	if ev.Amount != nil {
		items = append(items, fmt.Sprintf("amount: %s;", notify.env.Describe(ev.Token, ev.Amount)))
	}
	if ev.Wad != nil {
		items = append(items, fmt.Sprintf("wad: %s;", ev.Wad))
	}
	return strings.Join(items, "\n")
}
