package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Earn(ctx context.Context, cmd model.EarnCommand) (*model.LedgerResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerResult), args.Error(1)
}

func (m *MockLedgerService) Redeem(ctx context.Context, cmd model.RedeemCommand) (*model.LedgerResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerResult), args.Error(1)
}

func (m *MockLedgerService) AddFunds(ctx context.Context, cmd model.AddFundsCommand) (*model.LedgerResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerResult), args.Error(1)
}

func (m *MockLedgerService) History(ctx context.Context, tenantID int64, cardUID string, limit, offset int) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, tenantID, cardUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) VerifyBalance(ctx context.Context, tenantID int64, cardUID string) (*model.BalanceAudit, error) {
	args := m.Called(ctx, tenantID, cardUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceAudit), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePaymentIntent(ctx context.Context, cmd model.PaymentIntentCommand) (*model.PurchaseTransaction, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseTransaction), args.Error(1)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, reference string) (*model.ReconcileResult, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReconcileResult), args.Error(1)
}

func (m *MockPaymentService) ClosePayment(ctx context.Context, tenantID int64, reference string, status model.PaymentStatus) (bool, error) {
	args := m.Called(ctx, tenantID, reference, status)
	return args.Bool(0), args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func setupTestContext(method, path string, body []byte, params map[string]string) *xhttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if body != nil {
		req.SetBody(body)
	}

	// Init binds the context to fasthttp's stub server so Done and Err work
	// when handlers pass it on as a context.Context.
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func withActor(ctx *xhttp.RequestCtx) *xhttp.RequestCtx {
	ctx.Request.Header.Set(HeaderTenantID, "1")
	ctx.Request.Header.Set(HeaderStoreID, "10")
	ctx.Request.Header.Set(HeaderOperatorID, "op-7")
	return ctx
}

func decode(t *testing.T, ctx *xhttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func TestCardHandler_Earn(t *testing.T) {
	t.Run("commits and returns the result", func(t *testing.T) {
		svc := new(MockLedgerService)
		h := NewCardHandler(svc)

		svc.On("Earn", mock.Anything, mock.MatchedBy(func(cmd model.EarnCommand) bool {
			return cmd.TenantID == 1 && cmd.StoreID == 10 && cmd.OperatorID == "op-7" &&
				cmd.CardUID == "CARD-0001" && cmd.Amount.Cents() == 10_000 && cmd.Category == model.CategoryPurchase
		})).Return(&model.LedgerResult{
			Transaction:     &model.Transaction{ID: 5, AfterBalanceCents: 1900},
			CashbackCents:   400,
			NewBalanceCents: 1900,
		}, nil)

		ctx := withActor(setupTestContext("POST", "/api/v1/cards/CARD-0001/earn",
			[]byte(`{"amount_cents":10000,"category":"purchase"}`), map[string]string{"uid": "CARD-0001"}))
		h.Earn(ctx)

		assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
		body := decode(t, ctx)
		assert.Equal(t, float64(400), body["cashback_cents"])
		assert.Equal(t, float64(1900), body["new_balance_cents"])
		svc.AssertExpectations(t)
	})

	t.Run("missing actor headers", func(t *testing.T) {
		svc := new(MockLedgerService)
		ctx := setupTestContext("POST", "/api/v1/cards/CARD-0001/earn", []byte(`{}`), map[string]string{"uid": "CARD-0001"})
		NewCardHandler(svc).Earn(ctx)

		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Earn", mock.Anything, mock.Anything)
	})

	t.Run("invalid amount never reaches the ledger", func(t *testing.T) {
		svc := new(MockLedgerService)
		ctx := withActor(setupTestContext("POST", "/", []byte(`{"amount_cents":0,"category":"PURCHASE"}`), map[string]string{"uid": "C"}))
		NewCardHandler(svc).Earn(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Earn", mock.Anything, mock.Anything)
	})

	t.Run("unknown category", func(t *testing.T) {
		svc := new(MockLedgerService)
		ctx := withActor(setupTestContext("POST", "/", []byte(`{"amount_cents":10,"category":"FOOD"}`), map[string]string{"uid": "C"}))
		NewCardHandler(svc).Earn(ctx)
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := new(MockLedgerService)
		ctx := withActor(setupTestContext("POST", "/", []byte(`{`), map[string]string{"uid": "C"}))
		NewCardHandler(svc).Earn(ctx)
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}

func TestCardHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"store mismatch", &ledger.AuthorizationError{Reason: ledger.ErrStoreMismatch, BoundStoreID: 3}, fasthttp.StatusForbidden, "store_mismatch", false},
		{"inactive card", &ledger.AuthorizationError{Reason: ledger.ErrCardInactive}, fasthttp.StatusForbidden, "card_inactive", false},
		{"insufficient balance", &ledger.BusinessRuleViolation{Reason: ledger.ErrInsufficientBalance}, fasthttp.StatusConflict, "business_rule_violation", false},
		{"configuration", &ledger.ConfigurationError{Reason: ledger.ErrNegativeRate}, fasthttp.StatusUnprocessableEntity, "configuration_error", false},
		{"transient", &ledger.TransientError{Op: "redeem", Err: errors.New("deadlock")}, fasthttp.StatusServiceUnavailable, "transient_error", true},
		{"unclassified", errors.New("boom"), fasthttp.StatusServiceUnavailable, "transient_error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLedgerService)
			svc.On("Redeem", mock.Anything, mock.Anything).Return(nil, tt.err)

			ctx := withActor(setupTestContext("POST", "/", []byte(`{"amount_cents":600}`), map[string]string{"uid": "CARD-0001"}))
			NewCardHandler(svc).Redeem(ctx)

			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			body := decode(t, ctx)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.retryable, body["retryable"])
			if tt.code == "store_mismatch" {
				assert.Equal(t, float64(3), body["bound_store_id"])
			}
		})
	}
}

func TestCardHandler_AddFunds(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("AddFunds", mock.Anything, mock.MatchedBy(func(cmd model.AddFundsCommand) bool {
		return cmd.SourceMethod == model.SourceTransfer && cmd.Amount.Cents() == 2500
	})).Return(&model.LedgerResult{Transaction: &model.Transaction{ID: 1}, NewBalanceCents: 4000}, nil)

	ctx := withActor(setupTestContext("POST", "/", []byte(`{"amount_cents":2500,"source_method":"transfer"}`), map[string]string{"uid": "C"}))
	NewCardHandler(svc).AddFunds(ctx)
	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())

	bad := withActor(setupTestContext("POST", "/", []byte(`{"amount_cents":2500,"source_method":"cheque"}`), map[string]string{"uid": "C"}))
	NewCardHandler(svc).AddFunds(bad)
	assert.Equal(t, fasthttp.StatusBadRequest, bad.Response.StatusCode())
	svc.AssertNumberOfCalls(t, "AddFunds", 1)
}

func TestCardHandler_ListTransactions(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("History", mock.Anything, int64(1), "CARD-0001", 20, 40).
		Return([]*model.Transaction{{ID: 9}}, int64(41), nil)

	ctx := withActor(setupTestContext("GET", "/api/v1/cards/CARD-0001/transactions?limit=20&offset=40", nil, map[string]string{"uid": "CARD-0001"}))
	NewCardHandler(svc).ListTransactions(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, float64(41), body["total"])
	assert.Len(t, body["items"], 1)
}

func TestCardHandler_Audit(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("VerifyBalance", mock.Anything, int64(1), "CARD-0001").
		Return(&model.BalanceAudit{CardUID: "CARD-0001", Consistent: true, CachedBalance: 800, ReplayedBalance: 800}, nil)

	ctx := withActor(setupTestContext("GET", "/", nil, map[string]string{"uid": "CARD-0001"}))
	NewCardHandler(svc).Audit(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, true, decode(t, ctx)["consistent"])
}

func TestPaymentHandler_CreateIntent(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(cmd model.PaymentIntentCommand) bool {
		return cmd.Purpose == model.PaymentPurposePurchase && cmd.Category == model.CategoryRepair && cmd.CardUID == "CARD-0001"
	})).Return(&model.PurchaseTransaction{Reference: "ref-1", PaymentStatus: model.PaymentStatusPending}, nil)

	ctx := withActor(setupTestContext("POST", "/api/v1/payments/intents",
		[]byte(`{"card_uid":"CARD-0001","amount_cents":5000,"purpose":"PURCHASE","category":"REPAIR"}`), nil))
	NewPaymentHandler(svc).CreateIntent(ctx)

	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, "ref-1", decode(t, ctx)["reference"])

	for _, body := range []string{
		`{"card_uid":"CARD-0001","amount_cents":5000,"purpose":"GIFT"}`,
		`{"card_uid":"CARD-0001","amount_cents":5000,"purpose":"PURCHASE","category":"GROCERY"}`,
	} {
		bad := withActor(setupTestContext("POST", "/api/v1/payments/intents", []byte(body), nil))
		NewPaymentHandler(svc).CreateIntent(bad)
		assert.Equal(t, fasthttp.StatusBadRequest, bad.Response.StatusCode(), body)
	}
	svc.AssertNumberOfCalls(t, "CreatePaymentIntent", 1)
}

func TestPaymentHandler_Reconcile(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		svc := new(MockPaymentService)
		id := int64(12)
		svc.On("Reconcile", mock.Anything, "ref-1").Return(&model.ReconcileResult{Reference: "ref-1", Applied: true, TransactionID: &id}, nil)

		ctx := setupTestContext("POST", "/", nil, map[string]string{"reference": "ref-1"})
		NewPaymentHandler(svc).Reconcile(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, true, decode(t, ctx)["applied"])
	})

	t.Run("unknown reference", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Reconcile", mock.Anything, "nope").Return(nil, &ledger.ReconciliationError{Reference: "nope", Reason: ledger.ErrPaymentNotFound})

		ctx := setupTestContext("POST", "/", nil, map[string]string{"reference": "nope"})
		NewPaymentHandler(svc).Reconcile(ctx)
		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	})

	t.Run("closed payment", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Reconcile", mock.Anything, "gone").Return(nil, &ledger.ReconciliationError{Reference: "gone", Reason: ledger.ErrPaymentNotPending})

		ctx := setupTestContext("POST", "/", nil, map[string]string{"reference": "gone"})
		NewPaymentHandler(svc).Reconcile(ctx)
		assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_Close(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("ClosePayment", mock.Anything, int64(1), "ref-1", model.PaymentStatusCancelled).Return(true, nil)

	ctx := withActor(setupTestContext("POST", "/", []byte(`{"status":"cancelled"}`), map[string]string{"reference": "ref-1"}))
	NewPaymentHandler(svc).Close(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, true, decode(t, ctx)["changed"])

	bad := withActor(setupTestContext("POST", "/", []byte(`{"status":"lost"}`), map[string]string{"reference": "ref-1"}))
	NewPaymentHandler(svc).Close(bad)
	assert.Equal(t, fasthttp.StatusBadRequest, bad.Response.StatusCode())
}

func TestHealthHandler(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	ctx := setupTestContext("GET", "/health", nil, nil)
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": ok}).GetHealth(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "healthy", decode(t, ctx)["status"])

	ctx = setupTestContext("GET", "/health", nil, nil)
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": down}).GetHealth(ctx)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	body := decode(t, ctx)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestHealthHandler_PingerSeesDeadline(t *testing.T) {
	var hasDeadline bool
	slow := pingerFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil
		}
	})

	ctx := setupTestContext("GET", "/health", nil, nil)
	NewHealthHandler(map[string]Pinger{"postgres": slow}).GetHealth(ctx)

	assert.True(t, hasDeadline)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}
