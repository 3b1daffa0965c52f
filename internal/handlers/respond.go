package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderStoreID    = "X-Store-ID"
	HeaderOperatorID = "X-Operator-ID"
)

var errMissingActor = errors.New("missing or invalid X-Tenant-ID, X-Store-ID or X-Operator-ID header")

type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Retryable    bool   `json:"retryable"`
	BoundStoreID int64  `json:"bound_store_id,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		ctx.Error(xhttp.StatusText(xhttp.StatusInternalServerError), xhttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, code, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg, Code: code})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	n, _ := strconv.Atoi(query(ctx, key))
	return n
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return strings.TrimSpace(v)
}

// actor reads the identity the authentication layer in front of us already verified.
func actor(ctx *xhttp.RequestCtx) (model.Actor, error) {
	tenantID, err := strconv.ParseInt(string(ctx.Request.Header.Peek(HeaderTenantID)), 10, 64)
	if err != nil || tenantID <= 0 {
		return model.Actor{}, errMissingActor
	}
	storeID, err := strconv.ParseInt(string(ctx.Request.Header.Peek(HeaderStoreID)), 10, 64)
	if err != nil || storeID <= 0 {
		return model.Actor{}, errMissingActor
	}
	operatorID := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderOperatorID)))
	if operatorID == "" {
		return model.Actor{}, errMissingActor
	}
	return model.Actor{TenantID: tenantID, StoreID: storeID, OperatorID: operatorID}, nil
}

func requireActor(ctx *xhttp.RequestCtx) (model.Actor, bool) {
	a, err := actor(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, "unauthenticated", err.Error())
		return model.Actor{}, false
	}
	return a, true
}

func isValidationError(err error) bool {
	for _, target := range []error{
		model.ErrInvalidAmount,
		model.ErrInvalidCategory,
		model.ErrInvalidTier,
		model.ErrInvalidSourceMethod,
		model.ErrInvalidPurpose,
		model.ErrInvalidPaymentStatus,
		model.ErrInvalidChannel,
		ledger.ErrInvalidCloseStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses.
func writeLedgerError(ctx *xhttp.RequestCtx, err error) {
	var (
		auth *ledger.AuthorizationError
		biz  *ledger.BusinessRuleViolation
		cfg  *ledger.ConfigurationError
		rec  *ledger.ReconciliationError
		tr   *ledger.TransientError
	)

	switch {
	case isValidationError(err):
		writeError(ctx, xhttp.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &auth):
		writeJSON(ctx, xhttp.StatusForbidden, errorResponse{
			Error:        err.Error(),
			Code:         authCode(auth),
			BoundStoreID: auth.BoundStoreID,
		})
	case errors.As(err, &biz):
		writeError(ctx, xhttp.StatusConflict, "business_rule_violation", err.Error())
	case errors.As(err, &cfg):
		writeError(ctx, xhttp.StatusUnprocessableEntity, "configuration_error", err.Error())
	case errors.As(err, &rec):
		status := xhttp.StatusConflict
		if errors.Is(err, ledger.ErrPaymentNotFound) {
			status = xhttp.StatusNotFound
		}
		writeError(ctx, status, "reconciliation_error", err.Error())
	case errors.As(err, &tr):
		writeJSON(ctx, xhttp.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: "transient_error", Retryable: true})
	default:
		logger.Error("unclassified handler error", "path", string(ctx.Path()), "error", err)
		writeJSON(ctx, xhttp.StatusServiceUnavailable, errorResponse{Error: "temporary failure", Code: "transient_error", Retryable: true})
	}
}

func authCode(err *ledger.AuthorizationError) string {
	switch {
	case errors.Is(err, ledger.ErrStoreMismatch):
		return "store_mismatch"
	case errors.Is(err, ledger.ErrCardInactive):
		return "card_inactive"
	case errors.Is(err, ledger.ErrCardUnlinked):
		return "card_unlinked"
	case errors.Is(err, ledger.ErrCardNotFound):
		return "card_not_found"
	}
	return "forbidden"
}
