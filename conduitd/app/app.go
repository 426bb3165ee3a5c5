package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/egaotan/rwa-conduit/backend"
	"github.com/egaotan/rwa-conduit/balancelisten"
	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/egaotan/rwa-conduit/config"
	"github.com/egaotan/rwa-conduit/dingsdk"
	"github.com/egaotan/rwa-conduit/env"
	"github.com/egaotan/rwa-conduit/program"
	"github.com/egaotan/rwa-conduit/psm"
	"github.com/egaotan/rwa-conduit/settlement"
	"github.com/egaotan/rwa-conduit/statelisten"
	"github.com/egaotan/rwa-conduit/store"
	"github.com/egaotan/rwa-conduit/token"
	"github.com/egaotan/rwa-conduit/utils"
	"github.com/egaotan/rwa-conduit/vat"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	BalanceTicker = 10 * time.Second
	StateTicker   = 5 * time.Second
)

type Node struct {
	Name    string
	Conduit conduit.Conduit
}

// App wires the in-memory ledger, the conduits configured on it and the services around
// them.
type App struct {
	ctx           context.Context
	log           *zap.SugaredLogger
	config        *config.Config
	backend       *backend.Backend
	ledger        *token.Program
	tokens        map[string]*token.Token
	psms          map[string]*psm.Module
	vat           *vat.Program
	nodes         map[solana.PublicKey]*Node
	names         map[string]solana.PublicKey
	facility      *settlement.Facility
	dao           *store.Dao
	store         *store.Store
	env           *env.Env
	dsdk          dingsdk.Notifier
	notify        *Notify
	balanceListen *balancelisten.BalanceListen
	stateListen   *statelisten.StateListen
	httpServer    *http.Server
	listener      net.Listener
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logPath := cfg.LogPath
	if logPath == "" {
		logPath = config.LogPath
	}
	app := &App{
		ctx:    ctx,
		log:    utils.NewLog(logPath, "conduitd"),
		config: cfg,
		tokens: make(map[string]*token.Token),
		psms:   make(map[string]*psm.Module),
		nodes:  make(map[solana.PublicKey]*Node),
		names:  make(map[string]solana.PublicKey),
	}
	//
	dao, err := store.NewDao(dialector(cfg), cfg.Debug)
	if err != nil {
		return nil, err
	}
	app.dao = dao
	app.store, err = store.NewStore(ctx, dao, utils.NewLog(logPath, "store"))
	if err != nil {
		dao.Close()
		return nil, err
	}
	// deployment already emits events
	app.store.Start()
	app.env = env.NewEnv(app.log)
	if cfg.DingUrl == "" {
		app.dsdk = dingsdk.Nop{}
	} else {
		app.dsdk = dingsdk.NewDingSdk(cfg.DingUrl)
	}
	app.notify = NewNotify(ctx, app.env, app.dsdk, app.log)
	//
	app.backend = backend.NewBackend(utils.NewLog(logPath, "backend"))
	app.ledger = token.NewProgram(app.backend)
	vatKey := cfg.Vat
	if vatKey.IsZero() {
		vatKey = solana.NewWallet().PublicKey()
	}
	app.vat = vat.NewProgram(app.backend, vatKey)
	if err := app.deploy(ctx, logPath); err != nil {
		app.store.Stop()
		dao.Close()
		return nil, err
	}
	//
	balanceTicker := BalanceTicker
	if cfg.BalanceTicker > 0 {
		balanceTicker = time.Duration(cfg.BalanceTicker) * time.Millisecond
	}
	stateTicker := StateTicker
	if cfg.StateTicker > 0 {
		stateTicker = time.Duration(cfg.StateTicker) * time.Millisecond
	}
	keeper := cfg.Keeper
	if keeper.IsZero() {
		keeper = cfg.Admin
	}
	app.balanceListen = balancelisten.NewBalanceListen(ctx, balanceTicker, app.env, app.dsdk, utils.NewLog(logPath, "balance"))
	app.stateListen = statelisten.NewStateListen(ctx, stateTicker, app.vat, keeper, app.store, app.dsdk, utils.NewLog(logPath, "state"))
	for _, id := range app.Conduits() {
		node := app.nodes[id]
		app.stateListen.Watch(node.Conduit)
		app.balanceListen.Watch(&balancelisten.Holding{Name: node.Name, Owner: id, Token: holds(node.Conduit)})
	}
	if app.facility != nil {
		app.balanceListen.Watch(&balancelisten.Holding{Name: "settlement", Owner: app.facility.Id(), Token: app.tokens[cfg.Settlement.Currency]})
	}
	return app, nil
}

func dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == config.DriverSqlite {
		return store.SqliteDialector(cfg.DBPath)
	}
	return store.MysqlDialector(cfg.DBUrl, cfg.DBScheme, cfg.DBUser, cfg.DBPasswd)
}

func keyOr(key solana.PublicKey) solana.PublicKey {
	if key.IsZero() {
		return solana.NewWallet().PublicKey()
	}
	return key
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// holds is the token a conduit accumulates between pushes.
func holds(c conduit.Conduit) program.Token {
	switch c := c.(type) {
	case *conduit.SwapInputConduit:
		return c.Gem()
	case *conduit.InputConduit:
		return c.Gem()
	case *conduit.OutputConduit:
		return c.Dai()
	case *conduit.MultiSwapOutputConduit:
		return c.Dai()
	}
	panic(fmt.Errorf("conduit (%s) is not support", c.Kind()))
}

func (app *App) deploy(ctx context.Context, logPath string) error {
	cfg := app.config
	for _, item := range cfg.Tokens {
		t, err := app.ledger.CreateToken(keyOr(item.Key), item.Symbol, item.Decimal)
		if err != nil {
			return err
		}
		price := decimal.Zero
		if item.Price != "" {
			price = decimal.RequireFromString(item.Price)
		}
		app.tokens[item.Symbol] = t
		app.env.Register(t.Id(), &env.Token{Symbol: item.Symbol, Name: item.Name, Decimal: item.Decimal, Price: price})
	}
	for _, item := range cfg.Psms {
		if err := app.deployPsm(ctx, item); err != nil {
			return fmt.Errorf("psm %s: %w", item.Name, err)
		}
	}
	events := conduit.Events{app.store, app.notify}
	for _, item := range cfg.Conduits {
		c, err := app.deployConduit(ctx, item, events)
		if err != nil {
			return fmt.Errorf("conduit %s: %w", item.Name, err)
		}
		c.SetLogger(utils.NewLog(logPath, "conduit_"+item.Name))
		app.nodes[c.Id()] = &Node{Name: item.Name, Conduit: c}
		app.names[item.Name] = c.Id()
		app.log.Infof("deployed %s conduit %s at %s", c.Kind(), item.Name, c.Id())
	}
	if s := cfg.Settlement; s != nil {
		price, _ := config.ParseWad(s.Price)
		f, err := settlement.NewFacility(app.backend, keyOr(s.Key), app.tokens[s.Gem], app.tokens[s.Currency], price, app.vat)
		if err != nil {
			return fmt.Errorf("settlement: %w", err)
		}
		f.SetLogger(utils.NewLog(logPath, "settlement"))
		pot, _ := config.ParseAmount(s.Pot, app.tokens[s.Currency].Decimals())
		if pot != nil && pot.Sign() > 0 {
			if err := app.tokens[s.Currency].Mint(ctx, f.Id(), pot); err != nil {
				return fmt.Errorf("settlement: %w", err)
			}
		}
		app.facility = f
	}
	return nil
}

func (app *App) deployPsm(ctx context.Context, item *config.Psm) error {
	tin, _ := config.ParseWad(item.Tin)
	tout, _ := config.ParseWad(item.Tout)
	line, _ := config.ParseWad(item.Line)
	gem := app.tokens[item.Gem]
	module, err := psm.NewModule(app.backend, keyOr(item.Key), keyOr(item.GemJoin), gem, app.tokens[item.Dai], zeroIfNil(tin), zeroIfNil(tout), line)
	if err != nil {
		return err
	}
	app.psms[item.Name] = module
	reserve, _ := config.ParseAmount(item.Reserve, gem.Decimals())
	if reserve == nil || reserve.Sign() == 0 {
		return nil
	}
	lp := solana.NewWallet().PublicKey()
	if err := gem.Mint(ctx, lp, reserve); err != nil {
		return err
	}
	if err := gem.Approve(ctx, lp, module.GemJoin(), program.MaxUint256); err != nil {
		return err
	}
	_, err = module.SellGem(ctx, lp, lp, reserve)
	return err
}

func (app *App) deployConduit(ctx context.Context, item *config.Conduit, cb conduit.Callback) (conduit.Conduit, error) {
	cfg := app.config
	id := keyOr(item.Key)
	var c conduit.Conduit
	switch item.Kind {
	case config.KindInput:
		in, err := conduit.NewInputConduit(ctx, app.backend, id, cfg.Admin, app.psms[item.Psm], item.To, cb)
		if err != nil {
			return nil, err
		}
		c = in
	case config.KindSwapInput:
		in, err := conduit.NewSwapInputConduit(ctx, app.backend, id, cfg.Admin, app.psms[item.Psm], item.To, app.vat, cb)
		if err != nil {
			return nil, err
		}
		if !item.Recovery.IsZero() {
			if err := in.File(ctx, cfg.Admin, "recovery", item.Recovery); err != nil {
				return nil, err
			}
		}
		c = in
	case config.KindOutput:
		out, err := conduit.NewOutputConduit(ctx, app.backend, id, cfg.Admin, app.psms[item.Psm], cb)
		if err != nil {
			return nil, err
		}
		c = out
	case config.KindMultiSwap:
		out, err := conduit.NewMultiSwapOutputConduit(ctx, app.backend, id, cfg.Admin, app.tokens[item.Dai], cb)
		if err != nil {
			return nil, err
		}
		for _, pal := range item.Pals {
			if err := out.Clap(ctx, cfg.Admin, app.psms[pal]); err != nil {
				return nil, err
			}
		}
		c = out
	default:
		return nil, fmt.Errorf("kind %q is not support", item.Kind)
	}
	if !item.QuitTo.IsZero() {
		if err := c.File(ctx, cfg.Admin, "quitTo", item.QuitTo); err != nil {
			return nil, err
		}
	}
	grants := []struct {
		role    conduit.Role
		members []solana.PublicKey
	}{
		{conduit.Pusher, item.Pushers},
		{conduit.Operator, item.Operators},
		{conduit.Whitelist, item.Whitelist},
	}
	for _, grant := range grants {
		for _, who := range grant.members {
			if err := c.Grant(ctx, cfg.Admin, grant.role, who); err != nil {
				return nil, fmt.Errorf("grant %s to %s: %w", grant.role, who, err)
			}
		}
	}
	return c, nil
}

// Conduits lists conduit ids sorted by conduit name.
func (app *App) Conduits() []solana.PublicKey {
	names := make([]string, 0, len(app.names))
	for name := range app.names {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make([]solana.PublicKey, 0, len(names))
	for _, name := range names {
		ids = append(ids, app.names[name])
	}
	return ids
}

// Node finds a conduit by name or address.
func (app *App) Node(key string) *Node {
	if id, ok := app.names[key]; ok {
		return app.nodes[id]
	}
	id, err := solana.PublicKeyFromBase58(key)
	if err != nil {
		return nil
	}
	return app.nodes[id]
}

// Token finds a token by symbol or mint.
func (app *App) Token(key string) *token.Token {
	if t, ok := app.tokens[key]; ok {
		return t
	}
	id, err := solana.PublicKeyFromBase58(key)
	if err != nil {
		return nil
	}
	return app.ledger.GetToken(id)
}

func (app *App) snapshot(c conduit.Conduit) {
	if err := app.store.StoreSnapshot(c.State()); err != nil {
		app.log.Warnf("snapshot %s: %v", c.Id(), err)
	}
}

// Service runs the daemon until ctx is done.
func (app *App) Service() error {
	app.Start()
	if err := app.StartRPC(); err != nil {
		app.Stop()
		return err
	}
	g, ctx := errgroup.WithContext(app.ctx)
	g.Go(func() error {
		err := app.httpServer.Serve(app.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return app.StopRPC()
	})
	err := g.Wait()
	app.Stop()
	return err
}

func (app *App) Start() {
	app.notify.Start()
	app.balanceListen.Start()
	app.stateListen.Start()
	app.log.Infof("conduitd has started......")
}

func (app *App) Stop() {
	app.stateListen.Stop()
	app.balanceListen.Stop()
	app.notify.Stop()
	app.store.Stop()
	if err := app.dao.Close(); err != nil {
		app.log.Warnf("close db: %v", err)
	}
	app.log.Infof("conduitd has stopped......")
}

func (app *App) StartRPC() error {
	listener, err := net.Listen("tcp", app.config.Listen)
	if err != nil {
		return err
	}
	if app.config.MaxConns > 0 {
		listener = netutil.LimitListener(listener, app.config.MaxConns)
	}
	app.listener = listener
	app.httpServer = &http.Server{
		Handler: app.Router(),
	}
	app.log.Infof("start rpc server on %s......", listener.Addr())
	return nil
}

func (app *App) StopRPC() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	app.log.Infof("rpc server has stopped......")
	return nil
}
