package service

import "errors"

var (
	ErrTokenNotFound       = errors.New("checkout token not found")
	ErrTokenMismatch       = errors.New("checkout token mismatch")
	ErrTokenExpired        = errors.New("checkout token expired")
	ErrTokenUsageExceeded  = errors.New("checkout token usage limit exceeded")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrProviderUnsupported = errors.New("provider is not supported")
)
