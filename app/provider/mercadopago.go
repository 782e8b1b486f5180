package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const ProviderNameMercadoPago = "mercadopago"

type MercadoPagoConfig struct {
	AccessToken string
	BaseURL     string

	// CheckoutBaseURL is the browser-facing base for the success, failure
	// and pending back URLs. The issued token and order id are appended as
	// query parameters.
	CheckoutBaseURL string
	NotificationURL string

	Currency            string
	StatementDescriptor string
	HTTPTimeout         time.Duration
}

type MercadoPagoProvider struct {
	cfg    MercadoPagoConfig
	client *http.Client
}

func NewMercadoPagoProvider(cfg MercadoPagoConfig) *MercadoPagoProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.mercadopago.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "ARS"
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &MercadoPagoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *MercadoPagoProvider) Name() string {
	return ProviderNameMercadoPago
}

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int32   `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPhone struct {
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

type mpPayer struct {
	Name  string  `json:"name,omitempty"`
	Email string  `json:"email"`
	Phone mpPhone `json:"phone"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mpPreferenceRequest struct {
	Items               []mpItem   `json:"items"`
	Payer               mpPayer    `json:"payer"`
	BackURLs            mpBackURLs `json:"back_urls"`
	AutoReturn          string     `json:"auto_return"`
	ExternalReference   string     `json:"external_reference"`
	NotificationURL     string     `json:"notification_url,omitempty"`
	StatementDescriptor string     `json:"statement_descriptor,omitempty"`
}

func (p *MercadoPagoProvider) CreatePreference(ctx context.Context, input *PreferenceInput) (*Preference, error) {
	if strings.TrimSpace(p.cfg.AccessToken) == "" {
		return nil, fmt.Errorf("%w: mercadopago access token is not configured", ErrGateway)
	}
	if len(input.Items) == 0 {
		return nil, errors.New("preference requires at least one line item")
	}

	items := make([]mpItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, mpItem{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  centsToUnits(item.UnitPriceCents),
			CurrencyID: p.cfg.Currency,
		})
	}

	payload := &mpPreferenceRequest{
		Items: items,
		Payer: mpPayer{
			Name:  input.PayerName,
			Email: input.PayerEmail,
			Phone: mpPhone{Number: input.PayerPhone},
		},
		BackURLs: mpBackURLs{
			Success: p.backURL("success", input.OrderID, input.Token),
			Failure: p.backURL("failure", input.OrderID, input.Token),
			Pending: p.backURL("pending", input.OrderID, input.Token),
		},
		AutoReturn:          "approved",
		ExternalReference:   strconv.FormatUint(input.OrderID, 10),
		NotificationURL:     p.cfg.NotificationURL,
		StatementDescriptor: p.cfg.StatementDescriptor,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: create preference failed: status=%d message=%s", ErrGateway, resp.StatusCode, extractMessage(respBody))
	}

	var preference struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := json.Unmarshal(respBody, &preference); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if strings.TrimSpace(preference.ID) == "" || strings.TrimSpace(preference.InitPoint) == "" {
		return nil, fmt.Errorf("%w: response missing preference id or init_point", ErrGateway)
	}

	return &Preference{
		ID:               preference.ID,
		InitPoint:        preference.InitPoint,
		SandboxInitPoint: preference.SandboxInitPoint,
	}, nil
}

func (p *MercadoPagoProvider) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is empty", ErrGateway)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: get payment failed: status=%d message=%s", ErrGateway, resp.StatusCode, extractMessage(body))
	}

	var payment struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		StatusDetail      string      `json:"status_detail"`
		ExternalReference string      `json:"external_reference"`
		TransactionAmount float64     `json:"transaction_amount"`
		PaymentMethodID   string      `json:"payment_method_id"`
	}
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	return &PaymentInfo{
		PaymentID:         payment.ID.String(),
		Status:            payment.Status,
		StatusDetail:      payment.StatusDetail,
		ExternalReference: payment.ExternalReference,
		TransactionAmount: payment.TransactionAmount,
		PaymentMethodID:   payment.PaymentMethodID,
	}, nil
}

func (p *MercadoPagoProvider) backURL(outcome string, orderID uint64, token string) string {
	base := strings.TrimRight(strings.TrimSpace(p.cfg.CheckoutBaseURL), "/")
	query := url.Values{}
	query.Set("order", strconv.FormatUint(orderID, 10))
	query.Set("token", token)
	return base + "/checkout/" + outcome + "?" + query.Encode()
}

func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	return string(body)
}

func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}
