package entity

import "time"

const (
	PayStatusCompleted = "completado"
	PayStatusPending   = "pendiente"
	PayStatusRejected  = "rechazado"
)

// Pay records a processor payment applied to an order. The unique key on
// (order_id, provider_payment_id) doubles as the webhook idempotence ledger.
type Pay struct {
	ID uint64

	OrderID           uint64
	Reference         string
	ProviderPaymentID string

	Status          string
	StatusDetail    string
	AmountCents     int64
	PaymentMethodID string

	CreatedAt time.Time
}
