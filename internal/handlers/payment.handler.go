package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, cmd model.PaymentIntentCommand) (*model.PurchaseTransaction, error)
	Reconcile(ctx context.Context, reference string) (*model.ReconcileResult, error)
	ClosePayment(ctx context.Context, tenantID int64, reference string, status model.PaymentStatus) (bool, error)
}

type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments/intents", h.CreateIntent)
	e.POST("/payments/{reference}/reconcile", h.Reconcile)
	e.POST("/payments/{reference}/close", h.Close)
}

type intentRequest struct {
	CardUID     string `json:"card_uid"`
	AmountCents int64  `json:"amount_cents"`
	Purpose     string `json:"purpose"`
	Category    string `json:"category"`
}

type closeRequest struct {
	Status string `json:"status"`
}

func (h *PaymentHandler) CreateIntent(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req intentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	amount, err := model.NewAmount(req.AmountCents)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	purpose, err := model.ParsePaymentPurpose(req.Purpose)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	var category model.Category
	if req.Category != "" {
		if category, err = model.ParseCategory(req.Category); err != nil {
			writeLedgerError(ctx, err)
			return
		}
	}

	payment, err := h.svc.CreatePaymentIntent(ctx, model.PaymentIntentCommand{
		Actor:    a,
		CardUID:  req.CardUID,
		Amount:   amount,
		Purpose:  purpose,
		Category: category,
	})
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, payment)
}

// Reconcile is reached only after the webhook layer verified the provider signature.
func (h *PaymentHandler) Reconcile(ctx *xhttp.RequestCtx) {
	result, err := h.svc.Reconcile(ctx, pathParam(ctx, "reference"))
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *PaymentHandler) Close(ctx *xhttp.RequestCtx) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req closeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	status, err := model.ParsePaymentStatus(req.Status)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}

	changed, err := h.svc.ClosePayment(ctx, a.TenantID, pathParam(ctx, "reference"), status)
	if err != nil {
		writeLedgerError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]bool{"changed": changed})
}
