package balancelisten

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/egaotan/rwa-conduit/dingsdk"
	"github.com/egaotan/rwa-conduit/env"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Holding is one balance to watch: what owner holds of token.
type Holding struct {
	Name  string
	Owner solana.PublicKey
	Token program.Token
}

// BalanceListen polls conduit holdings and sends a notice whenever any of them moves.
type BalanceListen struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.SugaredLogger
	env      *env.Env
	dsdk     dingsdk.Notifier
	interval time.Duration
	lock     sync.Mutex
	holdings []*Holding
	balances []*big.Int
}

func NewBalanceListen(ctx context.Context, interval time.Duration, e *env.Env, dsdk dingsdk.Notifier, log *zap.SugaredLogger) *BalanceListen {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	bl := &BalanceListen{
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		env:      e,
		dsdk:     dsdk,
		interval: interval,
	}
	return bl
}

func (bl *BalanceListen) Watch(holding *Holding) {
	bl.lock.Lock()
	defer bl.lock.Unlock()
	bl.holdings = append(bl.holdings, holding)
	bl.balances = append(bl.balances, nil)
}

func (bl *BalanceListen) Start() {
	bl.log.Infof("start balance listen......")
	bl.wg.Add(1)
	go bl.accountBalance()
}

func (bl *BalanceListen) Stop() {
	bl.log.Infof("stop balance listen......")
	bl.cancel()
	bl.wg.Wait()
}

func (bl *BalanceListen) accountBalance() {
	defer bl.wg.Done()
	timer2 := time.NewTicker(bl.interval)
	defer timer2.Stop()
	for {
		select {
		case <-timer2.C:
			bl.Check(bl.ctx)
		case <-bl.ctx.Done():
			return
		}
	}
}

// Check reads every holding once and reports whether anything changed since the last
// check. The first observation of a holding counts as a change.
func (bl *BalanceListen) Check(ctx context.Context) bool {
	bl.lock.Lock()
	lines := ""
	for i, holding := range bl.holdings {
		balance := holding.Token.BalanceOf(holding.Owner)
		prev := bl.balances[i]
		if prev != nil && prev.Cmp(balance) == 0 {
			continue
		}
		lines += bl.line(holding, prev, balance)
		bl.balances[i] = balance
	}
	bl.lock.Unlock()
	if lines == "" {
		return false
	}
	content := "conduit balance update: \n" + lines + "time: " + time.Now().Format("2006-01-02 15:04:05") + ";"
	if _, err := bl.dsdk.Notify(ctx, dingsdk.Text(content, false)); err != nil {
		bl.log.Warnf("notify balance update: %v", err)
	}
	bl.log.Infof("%s", content)
	return true
}

func (bl *BalanceListen) line(holding *Holding, prev *big.Int, balance *big.Int) string {
	token := bl.env.Token(holding.Token.Id())
	if token == nil {
		token = &env.Token{Symbol: holding.Token.Symbol(), Decimal: holding.Token.Decimals()}
	}
	oldBalance := decimal.Zero
	if prev != nil {
		oldBalance = token.AmountUi(prev)
	}
	newBalance := token.AmountUi(balance)
	diff := newBalance.Sub(oldBalance)
	return fmt.Sprintf("%s: %s -> %s %s (%s);\n", holding.Name,
		oldBalance.String(), newBalance.String(), token.Symbol, diff.String())
}
