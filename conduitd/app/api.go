package app

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/egaotan/rwa-conduit/conduit"
	"github.com/egaotan/rwa-conduit/settlement"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	CodeBadRequest = "bad-request"
	CodeNotFound   = "not-found"
	CodeInternal   = "internal"
)

func (app *App) Router() *gin.Engine {
	if !app.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	g := router.Group("/api")
	g.GET("/conduits", app.getConduits)
	g.GET("/conduit/:id", app.getConduit)
	g.GET("/conduit/:id/snapshot", app.getSnapshot)
	g.GET("/events", app.getEvents)
	g.POST("/conduit/:id/push", app.push)
	g.POST("/conduit/:id/quit", app.quit)
	g.POST("/conduit/:id/pick", app.pick)
	g.POST("/conduit/:id/hook", app.hook)
	g.POST("/conduit/:id/recovery", app.approveRecovery)
	g.POST("/conduit/:id/file", app.file)
	g.POST("/conduit/:id/grant", app.grant)
	g.POST("/conduit/:id/revoke", app.revoke)
	g.GET("/tokens", app.getTokens)
	g.POST("/token/:id/transfer", app.transfer)
	g.POST("/token/:id/mint", app.mint)
	g.POST("/token/:id/approve", app.approve)
	g.GET("/settlement", app.getSettlement)
	g.POST("/settlement/redeem", app.redeem)
	return router
}

// status maps a failure to the status a client should act on.
func status(err error) int {
	switch conduit.ClassOf(err) {
	case conduit.ClassAuthorization:
		return http.StatusForbidden
	case conduit.ClassLifecycle:
		return http.StatusConflict
	case conduit.ClassConfiguration, conduit.ClassLiquidity, conduit.ClassArithmetic:
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, settlement.ErrLive):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrInsufficientPot), errors.Is(err, settlement.ErrZeroPayout):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (app *App) fail(c *gin.Context, err error) {
	code := CodeInternal
	var ce *conduit.Error
	if errors.As(err, &ce) {
		code = ce.Code
	}
	s := status(err)
	if s == http.StatusInternalServerError {
		app.log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(s, &ErrorResponse{Code: code, Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, &ErrorResponse{Code: CodeBadRequest, Message: err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, &ErrorResponse{Code: CodeNotFound, Message: what + " is not found"})
}

func (app *App) node(c *gin.Context) *Node {
	node := app.Node(c.Param("id"))
	if node == nil {
		notFound(c, "conduit "+c.Param("id"))
	}
	return node
}

func (app *App) getConduits(c *gin.Context) {
	infos := make([]*ConduitInfo, 0, len(app.nodes))
	for _, id := range app.Conduits() {
		infos = append(infos, buildConduitInfo(app.nodes[id]))
	}
	c.JSON(http.StatusOK, infos)
}

func (app *App) getConduit(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

func (app *App) getSnapshot(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	st, err := app.store.GetState(node.Conduit.Id().String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		notFound(c, "snapshot of "+node.Name)
		return
	}
	if err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (app *App) getEvents(c *gin.Context) {
	id := c.Query("conduit")
	if id != "" {
		node := app.Node(id)
		if node == nil {
			notFound(c, "conduit "+id)
			return
		}
		id = node.Conduit.Id().String()
	}
	limit := 100
	if limitStr, ok := c.GetQuery("limit"); ok {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			badRequest(c, errors.New("limit is invalid"))
			return
		}
		limit = v
	}
	events, err := app.store.GetEvents(id, limit)
	if err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (app *App) push(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var out *big.Int
	if amount == nil {
		out, err = node.Conduit.Push(ctx, req.Caller)
	} else {
		out, err = node.Conduit.PushAmount(ctx, req.Caller, amount)
	}
	if err != nil {
		app.fail(c, err)
		return
	}
	app.snapshot(node.Conduit)
	c.JSON(http.StatusOK, &AmountResponse{Amount: out.String()})
}

func (app *App) quit(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if amount == nil {
		err = node.Conduit.Quit(ctx, req.Caller)
	} else {
		err = node.Conduit.QuitAmount(ctx, req.Caller, amount)
	}
	if err != nil {
		app.fail(c, err)
		return
	}
	app.snapshot(node.Conduit)
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

func (app *App) pick(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	picker, ok := node.Conduit.(conduit.Picker)
	if !ok {
		badRequest(c, errors.New(node.Name+" has no recipient"))
		return
	}
	var req PickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := picker.Pick(c.Request.Context(), req.Caller, req.Who); err != nil {
		app.fail(c, err)
		return
	}
	app.snapshot(node.Conduit)
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

func (app *App) hook(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	multi, ok := node.Conduit.(*conduit.MultiSwapOutputConduit)
	if !ok {
		badRequest(c, errors.New(node.Name+" has no pool binding"))
		return
	}
	var req HookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	module, ok := app.psms[req.Psm]
	if !ok {
		notFound(c, "psm "+req.Psm)
		return
	}
	if err := multi.Hook(c.Request.Context(), req.Caller, module.Id()); err != nil {
		app.fail(c, err)
		return
	}
	app.snapshot(node.Conduit)
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

func (app *App) approveRecovery(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	swap, ok := node.Conduit.(*conduit.SwapInputConduit)
	if !ok {
		badRequest(c, errors.New(node.Name+" has no recovery"))
		return
	}
	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := swap.ApproveRecovery(c.Request.Context(), req.Caller); err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

// file takes addresses as base58 and psm values by configured name.
func (app *App) file(c *gin.Context) {
	node := app.node(c)
	if node == nil {
		return
	}
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var value interface{} = req.Value
	if req.What == "psm" {
		module, ok := app.psms[req.Value]
		if !ok {
			notFound(c, "psm "+req.Value)
			return
		}
		value = module
	}
	if err := node.Conduit.File(c.Request.Context(), req.Caller, req.What, value); err != nil {
		app.fail(c, err)
		return
	}
	app.snapshot(node.Conduit)
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

func (app *App) grant(c *gin.Context) {
	app.role(c, true)
}

func (app *App) revoke(c *gin.Context) {
	app.role(c, false)
}

func (app *App) role(c *gin.Context, grant bool) {
	node := app.node(c)
	if node == nil {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var err error
	if grant {
		err = node.Conduit.Grant(c.Request.Context(), req.Caller, req.Role, req.Who)
	} else {
		err = node.Conduit.Revoke(c.Request.Context(), req.Caller, req.Role, req.Who)
	}
	if err != nil {
		app.fail(c, err)
		return
	}
	app.snapshot(node.Conduit)
	c.JSON(http.StatusOK, buildConduitInfo(node))
}

func (app *App) getTokens(c *gin.Context) {
	infos := make([]*TokenInfo, 0, len(app.tokens))
	for _, t := range app.ledger.Tokens() {
		infos = append(infos, &TokenInfo{
			Key:     t.Id().String(),
			Symbol:  t.Symbol(),
			Decimal: t.Decimals(),
			Supply:  t.TotalSupply().String(),
		})
	}
	c.JSON(http.StatusOK, infos)
}

func (app *App) transfer(c *gin.Context) {
	t := app.Token(c.Param("id"))
	if t == nil {
		notFound(c, "token "+c.Param("id"))
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil || amount == nil {
		badRequest(c, errors.New("amount is invalid"))
		return
	}
	if err := t.Transfer(c.Request.Context(), req.From, req.To, amount); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, &AmountResponse{Amount: t.BalanceOf(req.To).String()})
}

// mint is the faucet of the simulated ledger.
func (app *App) mint(c *gin.Context) {
	t := app.Token(c.Param("id"))
	if t == nil {
		notFound(c, "token "+c.Param("id"))
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil || amount == nil {
		badRequest(c, errors.New("amount is invalid"))
		return
	}
	if err := t.Mint(c.Request.Context(), req.To, amount); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, &AmountResponse{Amount: t.BalanceOf(req.To).String()})
}

func (app *App) getSettlement(c *gin.Context) {
	if app.facility == nil {
		notFound(c, "settlement")
		return
	}
	c.JSON(http.StatusOK, &SettlementInfo{
		Id:    app.facility.Id().String(),
		Price: app.facility.Price().String(),
		Pot:   app.facility.Pot().String(),
		Live:  app.vat.Live(),
	})
}

func (app *App) redeem(c *gin.Context) {
	if app.facility == nil {
		notFound(c, "settlement")
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil || amount == nil {
		badRequest(c, errors.New("amount is invalid"))
		return
	}
	paid, err := app.facility.Redeem(c.Request.Context(), req.Caller, amount)
	if err != nil {
		app.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, &AmountResponse{Amount: paid.String()})
}

// approve lets from grant to an allowance, for redemptions.
func (app *App) approve(c *gin.Context) {
	t := app.Token(c.Param("id"))
	if t == nil {
		notFound(c, "token "+c.Param("id"))
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil || amount == nil {
		badRequest(c, errors.New("amount is invalid"))
		return
	}
	if err := t.Approve(c.Request.Context(), req.From, req.To, amount); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, &AmountResponse{Amount: t.Allowance(req.From, req.To).String()})
}
