package provider

import (
	"context"
	"errors"
)

// ErrGateway marks failures talking to the external payment processor:
// transport errors, non-success statuses, malformed responses. Callers
// surface it without retrying at this layer.
var ErrGateway = errors.New("payment gateway error")

type LineItem struct {
	Title          string
	Quantity       int32
	UnitPriceCents int64
}

type PreferenceInput struct {
	OrderID uint64
	Token   string

	Items []LineItem

	PayerName  string
	PayerEmail string
	PayerPhone string
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

// PaymentInfo is the processor's view of one payment, as resolved from a
// webhook notification.
type PaymentInfo struct {
	PaymentID         string
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount float64
	PaymentMethodID   string
}

type Provider interface {
	Name() string
	CreatePreference(ctx context.Context, input *PreferenceInput) (*Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
}
