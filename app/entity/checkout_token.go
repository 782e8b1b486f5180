package entity

import "time"

// CheckoutToken is the short-lived secret binding one browser session to
// one order across the payment-processor redirect. It lives in the token
// store, never in MySQL.
type CheckoutToken struct {
	Token   string
	OrderID uint64

	OriginIP  string
	UserAgent string

	UsageCount int32

	CreatedAt  time.Time
	LastUsedAt *time.Time
}
