package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/domain"
	"github.com/totegamma/nftsurface/internal/present/rest/presenter"
	"github.com/totegamma/nftsurface/internal/service"
	"github.com/totegamma/nftsurface/internal/usecase"
)

type Handler struct {
	config     domain.Config
	ledger     *usecase.LedgerUsecase
	settlement *usecase.SettlementUsecase
	access     *usecase.AccessUsecase
	signal     *service.SignalService
}

func NewHandler(
	config domain.Config,
	ledger *usecase.LedgerUsecase,
	settlement *usecase.SettlementUsecase,
	access *usecase.AccessUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:     config,
		ledger:     ledger,
		settlement: settlement,
		access:     access,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/nftsurface", h.handleWellKnown)

	e.GET("/api/v1/asset/:id", h.handleAssetState)
	e.GET("/api/v1/asset/:id/vacant", h.handleVacant)
	e.GET("/api/v1/supply", h.handleSupply)
	e.GET("/api/v1/floor", h.handleFloor)
	e.GET("/api/v1/royalty", h.handleRoyalty)
	e.GET("/api/v1/roles/:role", h.handleRoleMembers)
	e.GET("/api/v1/settlement", h.handleSettlementState)
	e.GET("/api/v1/settlement/due/:account", h.handleDue)

	e.POST("/api/v1/mint", h.handleMint)
	e.POST("/api/v1/issue", h.handleIssue)
	e.POST("/api/v1/asset/:id/price", h.handleSetPrice)
	e.POST("/api/v1/asset/:id/buy", h.handleBuy)
	e.POST("/api/v1/asset/:id/transfer", h.handleTransfer)
	e.POST("/api/v1/asset/:id/approve", h.handleApprove)
	e.POST("/api/v1/asset/:id/burn", h.handleBurn)
	e.POST("/api/v1/admin/revoke/:id", h.handleRevokeID)
	e.POST("/api/v1/admin/floor", h.handleSetFloor)
	e.POST("/api/v1/admin/royalty", h.handleSetRoyalty)
	e.POST("/api/v1/admin/roles/grant", h.handleGrantRole)
	e.POST("/api/v1/admin/roles/revoke", h.handleRevokeRole)
	e.POST("/api/v1/settlement/release", h.handleRelease)

	e.GET("/realtime", h.handleRealtime)
}

// requester returns the authenticated caller address, set by the auth
// middleware, or "" for anonymous requests.
func requester(c echo.Context) string {
	id, _ := c.Request().Context().Value(domain.RequesterIdCtxKey).(string)
	return id
}

func assetID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// reject maps the error taxonomy onto status codes: admissibility failures
// conflict with ledger state, authorization failures are forbidden, payment
// failures are correctable by the caller.
func reject(c echo.Context, err error) error {
	var ce domain.CategoryError
	if errors.As(err, &ce) {
		switch ce.Category {
		case domain.CategoryAdmissibility:
			return presenter.Rejected(c, http.StatusConflict, ce.Category, err)
		case domain.CategoryAuthorization:
			return presenter.Rejected(c, http.StatusForbidden, ce.Category, err)
		case domain.CategoryPayment:
			return presenter.Rejected(c, http.StatusPaymentRequired, ce.Category, err)
		case domain.CategorySettlement:
			return presenter.Rejected(c, http.StatusConflict, ce.Category, err)
		}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return presenter.NotFound(c, err.Error())
	}
	return presenter.InternalError(c, err)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := nftsurface.WellKnownSurface{
		Version:   "1.0.0",
		Authority: h.config.Authority,
		Domain:    h.config.Domain,
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleAssetState(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	state, err := h.ledger.State(ctx, id)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, state)
}

func (h *Handler) handleVacant(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	vacant, cause := h.ledger.Vacant(ctx, id)
	resp := echo.Map{"assetId": id, "vacant": vacant}
	if cause != nil {
		var ce domain.CategoryError
		if !errors.As(cause, &ce) {
			return reject(c, cause)
		}
		resp["cause"] = cause.Error()
	}
	return presenter.OK(c, resp)
}

func (h *Handler) handleSupply(c echo.Context) error {
	ctx := c.Request().Context()
	supply, err := h.ledger.TotalSupply(ctx)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"totalSupply": supply})
}

func (h *Handler) handleFloor(c echo.Context) error {
	ctx := c.Request().Context()
	floor, err := h.ledger.Floor(ctx)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"floor": floor})
}

func (h *Handler) handleRoyalty(c echo.Context) error {
	ctx := c.Request().Context()
	bps, err := h.settlement.Royalty(ctx)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"basisPoints": bps})
}

func (h *Handler) handleRoleMembers(c echo.Context) error {
	ctx := c.Request().Context()
	members, err := h.access.Members(ctx, c.Param("role"))
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"role": c.Param("role"), "members": members})
}

func (h *Handler) handleSettlementState(c echo.Context) error {
	ctx := c.Request().Context()

	total, err := h.settlement.TotalReceived(ctx)
	if err != nil {
		return reject(c, err)
	}
	payees, err := h.settlement.Payees(ctx)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"totalReceived": total, "payees": payees})
}

func (h *Handler) handleDue(c echo.Context) error {
	ctx := c.Request().Context()

	account := c.Param("account")
	if !nftsurface.IsHexAddress(account) {
		return presenter.BadRequestMessage(c, "invalid account address")
	}

	due, err := h.settlement.Due(ctx, account)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"account": nftsurface.NormalizeAddress(account), "due": due})
}

type mintRequest struct {
	Voucher nftsurface.Voucher `json:"voucher"`
	Payment sdkmath.Int        `json:"payment"`
}

func (h *Handler) handleMint(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req mintRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.ledger.Redeem(ctx, caller, req.Voucher, req.Payment); err != nil {
		return reject(c, err)
	}

	state, err := h.ledger.State(ctx, req.Voucher.AssetID)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, state)
}

type issueRequest struct {
	AssetID       uint64 `json:"assetId"`
	Owner         string `json:"owner"`
	DescriptorURI string `json:"descriptorUri"`
}

func (h *Handler) handleIssue(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !nftsurface.IsHexAddress(req.Owner) {
		return presenter.BadRequestMessage(c, "invalid owner address")
	}

	if err := h.ledger.IssueDirect(ctx, caller, req.AssetID, req.Owner, req.DescriptorURI); err != nil {
		return reject(c, err)
	}

	state, err := h.ledger.State(ctx, req.AssetID)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, state)
}

type priceRequest struct {
	Price sdkmath.Int `json:"price"`
}

func (h *Handler) handleSetPrice(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	var req priceRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.ledger.SetPrice(ctx, caller, id, req.Price); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type buyRequest struct {
	Payment sdkmath.Int `json:"payment"`
}

func (h *Handler) handleBuy(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	var req buyRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	refund, err := h.ledger.Buy(ctx, caller, id, req.Payment)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok", "refund": refund})
}

type transferRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleTransfer(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.ledger.Transfer(ctx, caller, id, req.To); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type approveRequest struct {
	Operator string `json:"operator"`
}

func (h *Handler) handleApprove(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !nftsurface.IsHexAddress(req.Operator) {
		return presenter.BadRequestMessage(c, "invalid operator address")
	}

	if err := h.ledger.Approve(ctx, caller, id, req.Operator); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleBurn(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	if err := h.ledger.Burn(ctx, caller, id); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleRevokeID(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	id, err := assetID(c)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid asset id")
	}

	if err := h.ledger.RevokeID(ctx, caller, id); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type floorRequest struct {
	Floor uint64 `json:"floor"`
}

func (h *Handler) handleSetFloor(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req floorRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.ledger.SetFloor(ctx, caller, req.Floor); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type royaltyRequest struct {
	BasisPoints uint32 `json:"basisPoints"`
}

func (h *Handler) handleSetRoyalty(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req royaltyRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.settlement.SetRoyalty(ctx, caller, req.BasisPoints); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type roleRequest struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

func (h *Handler) handleGrantRole(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !nftsurface.IsHexAddress(req.Principal) {
		return presenter.BadRequestMessage(c, "invalid principal address")
	}

	if err := h.access.Grant(ctx, caller, req.Role, req.Principal); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleRevokeRole(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !nftsurface.IsHexAddress(req.Principal) {
		return presenter.BadRequestMessage(c, "invalid principal address")
	}

	if err := h.access.Revoke(ctx, caller, req.Role, req.Principal); err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type releaseRequest struct {
	Account string `json:"account"`
}

func (h *Handler) handleRelease(c echo.Context) error {
	ctx := c.Request().Context()

	caller := requester(c)
	if caller == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req releaseRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	account := req.Account
	if account == "" {
		account = caller
	}
	if !nftsurface.IsHexAddress(account) {
		return presenter.BadRequestMessage(c, "invalid account address")
	}

	released, err := h.settlement.Release(ctx, caller, account)
	if err != nil {
		return reject(c, err)
	}
	return presenter.OK(c, echo.Map{"account": nftsurface.NormalizeAddress(account), "released": released})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	events, err := h.signal.Subscribe(ctx, service.EventChannel)
	if err != nil {
		slog.ErrorContext(
			ctx, "Failed to subscribe to event feed",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}

	quit := make(chan struct{})

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
