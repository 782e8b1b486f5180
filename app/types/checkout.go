package types

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CheckoutPreferenceResponse struct {
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
	Token            string `json:"token"`
}

type ValidateCheckoutResponse struct {
	Valid         bool   `json:"valid"`
	OrderID       uint64 `json:"order_id"`
	UsageCount    int32  `json:"usage_count"`
	FingerprintOK bool   `json:"fingerprint_ok"`
}

type CreateCheckoutRequest struct {
	OrderID   uint64
	IP        string
	UserAgent string
}

func NewCreateCheckoutRequestFromContext(ctx echo.Context) (*CreateCheckoutRequest, error) {
	orderID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	return &CreateCheckoutRequest{
		OrderID:   orderID,
		IP:        ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}, nil
}

func (r *CreateCheckoutRequest) Validate() error {
	if r.OrderID == 0 {
		return errors.New("invalid order id")
	}
	return nil
}

type ValidateCheckoutRequest struct {
	OrderID   uint64
	Token     string
	IP        string
	UserAgent string
}

func NewValidateCheckoutRequestFromContext(ctx echo.Context) (*ValidateCheckoutRequest, error) {
	orderRaw := strings.TrimSpace(ctx.QueryParam("order"))
	if orderRaw == "" {
		return nil, errors.New("order query parameter is required")
	}
	orderID, err := strconv.ParseUint(orderRaw, 10, 64)
	if err != nil {
		return nil, err
	}

	return &ValidateCheckoutRequest{
		OrderID:   orderID,
		Token:     strings.TrimSpace(ctx.QueryParam("token")),
		IP:        ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}, nil
}

func (r *ValidateCheckoutRequest) Validate() error {
	if r.OrderID == 0 {
		return errors.New("invalid order id")
	}
	if r.Token == "" {
		return errors.New("token query parameter is required")
	}
	return nil
}

type WebhookRequest struct {
	Topic     string
	PaymentID string
}

// NewWebhookRequestFromContext accepts the processor's delivery formats:
// the JSON body {"type":"payment","data":{"id":"..."}} as well as the
// legacy ?topic=payment&id=... query form.
func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	req := &WebhookRequest{
		Topic:     strings.TrimSpace(ctx.QueryParam("type")),
		PaymentID: strings.TrimSpace(ctx.QueryParam("data.id")),
	}
	if req.Topic == "" {
		req.Topic = strings.TrimSpace(ctx.QueryParam("topic"))
	}
	if req.PaymentID == "" {
		req.PaymentID = strings.TrimSpace(ctx.QueryParam("id"))
	}

	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	var body struct {
		Type   string `json:"type"`
		Topic  string `json:"topic"`
		Action string `json:"action"`
		Data   struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if len(rawBody) > 0 && json.Unmarshal(rawBody, &body) == nil {
		if strings.TrimSpace(body.Type) != "" {
			req.Topic = strings.TrimSpace(body.Type)
		} else if strings.TrimSpace(body.Topic) != "" {
			req.Topic = strings.TrimSpace(body.Topic)
		} else if strings.HasPrefix(body.Action, "payment.") {
			req.Topic = "payment"
		}
		if id := strings.TrimSpace(body.Data.ID.String()); id != "" {
			req.PaymentID = id
		}
	}

	return req, nil
}

// IsPayment reports whether the delivery concerns a payment; other topics
// (merchant orders, plans) are acknowledged without processing.
func (r *WebhookRequest) IsPayment() bool {
	return strings.EqualFold(r.Topic, "payment")
}

func (r *WebhookRequest) Validate() error {
	if !r.IsPayment() {
		return nil
	}
	if strings.TrimSpace(r.PaymentID) == "" {
		return errors.New("payment id is required")
	}
	return nil
}
