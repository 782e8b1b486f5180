package entity

import (
	"strings"
	"time"
)

// Order states as stored by the surrounding shop. "pagado" is terminal on
// the success path; repositories never overwrite it.
const (
	OrderStatusPending  = "pendiente"
	OrderStatusPaid     = "pagado"
	OrderStatusRejected = "rechazado"
	OrderStatusCanceled = "cancelado"
	OrderStatusShipped  = "enviado"
)

type Order struct {
	ID uint64

	UserName   *string
	UserEmail  *string
	GuestEmail *string

	Status     string
	TotalCents int64

	EmailConfirmationSent bool
	EmailConfirmationAt   *time.Time

	Items []*OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID uint64

	OrderID        uint64
	ProductName    string
	Quantity       int32
	UnitPriceCents int64
	SubtotalCents  int64
}

// RecipientEmail returns the account email, falling back to the guest
// email for orders placed without an account. Empty when neither is set.
func (o *Order) RecipientEmail() string {
	if o.UserEmail != nil && strings.TrimSpace(*o.UserEmail) != "" {
		return strings.TrimSpace(*o.UserEmail)
	}
	if o.GuestEmail != nil && strings.TrimSpace(*o.GuestEmail) != "" {
		return strings.TrimSpace(*o.GuestEmail)
	}
	return ""
}
