package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
)

type LedgerService interface {
	Earn(ctx context.Context, cmd model.EarnCommand) (*model.LedgerResult, error)
	Redeem(ctx context.Context, cmd model.RedeemCommand) (*model.LedgerResult, error)
	AddFunds(ctx context.Context, cmd model.AddFundsCommand) (*model.LedgerResult, error)
	History(ctx context.Context, tenantID int64, cardUID string, limit, offset int) ([]*model.Transaction, int64, error)
	VerifyBalance(ctx context.Context, tenantID int64, cardUID string) (*model.BalanceAudit, error)
}

type CardHandler struct {
	svc LedgerService
}

func NewCardHandler(svc LedgerService) *CardHandler {
	return &CardHandler{svc: svc}
}

func RegisterCardRoutes(e *router.Group, h *CardHandler) {
	e.POST("/cards/{uid}/earn", h.Earn)
	e.POST("/cards/{uid}/redeem", h.Redeem)
	e.POST("/cards/{uid}/funds", h.AddFunds)
	e.GET("/cards/{uid}/transactions", h.ListTransactions)
	e.GET("/cards/{uid}/audit", h.Audit)
}

type earnRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Note        string `json:"note"`
}

type redeemRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

type fundsRequest struct {
	AmountCents  int64  `json:"amount_cents"`
	SourceMethod string `json:"source_method"`
	Note         string `json:"note"`
}

type listResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

func (h *CardHandler) Earn(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req earnRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	amount, err := model.NewAmount(req.AmountCents)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}

	result, err := h.svc.Earn(ctx, model.EarnCommand{
		Actor:    a,
		CardUID:  pathParam(ctx, "uid"),
		Amount:   amount,
		Category: category,
		Note:     req.Note,
	})
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, result)
}

func (h *CardHandler) Redeem(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req redeemRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	amount, err := model.NewAmount(req.AmountCents)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}

	result, err := h.svc.Redeem(ctx, model.RedeemCommand{
		Actor:   a,
		CardUID: pathParam(ctx, "uid"),
		Amount:  amount,
		Note:    req.Note,
	})
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, result)
}

func (h *CardHandler) AddFunds(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req fundsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	amount, err := model.NewAmount(req.AmountCents)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	source, err := model.ParseSourceMethod(req.SourceMethod)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}

	result, err := h.svc.AddFunds(ctx, model.AddFundsCommand{
		Actor:        a,
		CardUID:      pathParam(ctx, "uid"),
		Amount:       amount,
		SourceMethod: source,
		Note:         req.Note,
	})
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, result)
}

func (h *CardHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	items, total, err := h.svc.History(ctx, a.TenantID, pathParam(ctx, "uid"), queryInt(ctx, "limit"), queryInt(ctx, "offset"))
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.Transaction{}
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

func (h *CardHandler) Audit(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	audit, err := h.svc.VerifyBalance(ctx, a.TenantID, pathParam(ctx, "uid"))
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, audit)
}
