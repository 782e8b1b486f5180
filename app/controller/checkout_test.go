package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/notifier"
	"github.com/velorum-store/ms-go-checkout/app/provider"
	"github.com/velorum-store/ms-go-checkout/app/service"
	"github.com/velorum-store/ms-go-checkout/app/store"
	"github.com/velorum-store/ms-go-checkout/app/types"
	"github.com/velorum-store/ms-go-checkout/config"
)

type controllerOrderRepo struct {
	findByIDFn func(ctx context.Context, id uint64) (*entity.Order, error)
	markPaidFn func(ctx context.Context, id uint64, totalCents int64, now time.Time) (bool, error)
}

func (r *controllerOrderRepo) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (r *controllerOrderRepo) MarkPaid(ctx context.Context, id uint64, totalCents int64, now time.Time) (bool, error) {
	if r.markPaidFn != nil {
		return r.markPaidFn(ctx, id, totalCents, now)
	}
	return true, nil
}

func (r *controllerOrderRepo) UpdateStatus(context.Context, uint64, string, time.Time) error {
	return nil
}

func (r *controllerOrderRepo) MarkEmailConfirmationSent(context.Context, uint64, time.Time) error {
	return nil
}

func (r *controllerOrderRepo) ListPaidWithoutConfirmation(context.Context, int32) ([]*entity.Order, error) {
	return []*entity.Order{}, nil
}

type controllerPayRepo struct{}

func (r *controllerPayRepo) Create(context.Context, *entity.Pay) error { return nil }

func (r *controllerPayRepo) FindLatestByOrderID(context.Context, uint64) (*entity.Pay, error) {
	return nil, nil
}

type controllerDispatcher struct{}

func (d *controllerDispatcher) Enqueue(notifier.Job) bool { return true }

type controllerMailer struct{}

func (m *controllerMailer) SendPaymentConfirmation(*entity.Order, *provider.PaymentInfo) bool {
	return true
}

type controllerCheckoutProvider struct {
	preference    *provider.Preference
	preferenceErr error
	payment       *provider.PaymentInfo
	paymentErr    error
}

func (p *controllerCheckoutProvider) Name() string { return provider.ProviderNameMercadoPago }

func (p *controllerCheckoutProvider) CreatePreference(context.Context, *provider.PreferenceInput) (*provider.Preference, error) {
	if p.preferenceErr != nil {
		return nil, p.preferenceErr
	}
	if p.preference != nil {
		return p.preference, nil
	}
	return &provider.Preference{ID: "pref-123", InitPoint: "https://mp.example/init"}, nil
}

func (p *controllerCheckoutProvider) GetPayment(context.Context, string) (*provider.PaymentInfo, error) {
	if p.paymentErr != nil {
		return nil, p.paymentErr
	}
	if p.payment != nil {
		return p.payment, nil
	}
	return &provider.PaymentInfo{PaymentID: "mp-1001", Status: "approved", ExternalReference: "42", TransactionAmount: 1500.00}, nil
}

func pendingOrder(id uint64) *entity.Order {
	email := "ana@example.com"
	return &entity.Order{
		ID:        id,
		UserEmail: &email,
		Status:    entity.OrderStatusPending,
		Items: []*entity.OrderItem{
			{OrderID: id, ProductName: "Remera negra", Quantity: 1, UnitPriceCents: 50000, SubtotalCents: 50000},
		},
	}
}

func newControllerForTest(t *testing.T, orderRepo *controllerOrderRepo, p provider.Provider) *CheckoutController {
	t.Helper()
	tokens := store.NewMemoryTokenStore(time.Hour)
	t.Cleanup(tokens.Close)

	checkoutService := service.NewCheckoutService(
		orderRepo,
		&controllerPayRepo{},
		tokens,
		provider.NewRegistry(p),
		&controllerDispatcher{},
		&controllerMailer{},
		config.CheckoutConfig{TokenTTL: 30 * time.Minute, TokenMaxUses: 3, JobBatchSize: 100},
	)
	return NewCheckoutController(checkoutService)
}

func TestCreateCheckoutSuccess(t *testing.T) {
	orderRepo := &controllerOrderRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Order, error) {
		return pendingOrder(id), nil
	}}
	ctrl := newControllerForTest(t, orderRepo, &controllerCheckoutProvider{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders/42/preference", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Chrome/120")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("42")

	_ = ctrl.CreateCheckout(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.CheckoutPreferenceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.PreferenceID != "pref-123" {
		t.Fatalf("unexpected preference id: %s", payload.PreferenceID)
	}
	if len(payload.Token) != 43 {
		t.Fatalf("expected 43 character token, got %d", len(payload.Token))
	}
}

func TestCreateCheckoutOrderNotFound(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders/9/preference", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.CreateCheckout(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateCheckoutAlreadyPaidConflict(t *testing.T) {
	orderRepo := &controllerOrderRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Order, error) {
		order := pendingOrder(id)
		order.Status = entity.OrderStatusPaid
		return order, nil
	}}
	ctrl := newControllerForTest(t, orderRepo, &controllerCheckoutProvider{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders/42/preference", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("42")

	_ = ctrl.CreateCheckout(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateCheckoutGatewayFailure(t *testing.T) {
	orderRepo := &controllerOrderRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Order, error) {
		return pendingOrder(id), nil
	}}
	ctrl := newControllerForTest(t, orderRepo, &controllerCheckoutProvider{preferenceErr: provider.ErrGateway})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders/42/preference", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("42")

	_ = ctrl.CreateCheckout(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCreateCheckoutBadOrderID(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders/abc/preference", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("abc")

	_ = ctrl.CreateCheckout(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func validateContext(e *echo.Echo, orderID, token string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/checkout/validate?order="+orderID+"&token="+token, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestValidateCheckoutStatusMapping(t *testing.T) {
	orderRepo := &controllerOrderRepo{findByIDFn: func(_ context.Context, id uint64) (*entity.Order, error) {
		return pendingOrder(id), nil
	}}
	ctrl := newControllerForTest(t, orderRepo, &controllerCheckoutProvider{})
	e := echo.New()

	// No token issued yet.
	ctx, rec := validateContext(e, "42", "whatever")
	_ = ctrl.ValidateCheckout(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing token, got %d", rec.Code)
	}

	// Issue a real token through the create endpoint.
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders/42/preference", nil)
	createRec := httptest.NewRecorder()
	createCtx := e.NewContext(req, createRec)
	createCtx.SetParamNames("id")
	createCtx.SetParamValues("42")
	_ = ctrl.CreateCheckout(createCtx)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d", createRec.Code)
	}
	var created types.CheckoutPreferenceResponse
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	// Wrong token value.
	ctx, rec = validateContext(e, "42", "forged")
	_ = ctrl.ValidateCheckout(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched token, got %d", rec.Code)
	}

	// Valid token, three allowed uses.
	for i := 0; i < 3; i++ {
		ctx, rec = validateContext(e, "42", created.Token)
		_ = ctrl.ValidateCheckout(ctx)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on use %d, got %d body=%s", i+1, rec.Code, rec.Body.String())
		}
	}

	var payload types.ValidateCheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !payload.Valid || payload.UsageCount != 3 {
		t.Fatalf("unexpected validate payload: %+v", payload)
	}

	// Fourth use is over the ceiling.
	ctx, rec = validateContext(e, "42", created.Token)
	_ = ctrl.ValidateCheckout(ctx)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the usage limit, got %d", rec.Code)
	}
}

func TestValidateCheckoutMissingParams(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/checkout/validate?order=42", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.ValidateCheckout(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token, got %d", rec.Code)
	}
}

func TestHandleWebhookNonPaymentTopicAcknowledged(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", bytes.NewBufferString(`{"topic":"merchant_order","data":{"id":"555"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored topic, got %d", rec.Code)
	}
}

func TestHandleWebhookGatewayFailure(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{paymentErr: provider.ErrGateway})
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", bytes.NewBufferString(`{"type":"payment","data":{"id":"1001"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleWebhook(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestHandleWebhookMissingPaymentID(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", bytes.NewBufferString(`{"type":"payment"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleWebhook(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	ctrl := newControllerForTest(t, &controllerOrderRepo{}, &controllerCheckoutProvider{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.Health(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
