package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/factory"
	"github.com/velorum-store/ms-go-checkout/app/notifier"
	"github.com/velorum-store/ms-go-checkout/app/provider"
	"github.com/velorum-store/ms-go-checkout/app/security"
	"github.com/velorum-store/ms-go-checkout/app/store"
	"github.com/velorum-store/ms-go-checkout/config"
)

const defaultBatchSize = int32(100)

type orderRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	MarkPaid(ctx context.Context, id uint64, totalCents int64, now time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uint64, status string, now time.Time) error
	MarkEmailConfirmationSent(ctx context.Context, id uint64, now time.Time) error
	ListPaidWithoutConfirmation(ctx context.Context, limit int32) ([]*entity.Order, error)
}

type payRepository interface {
	Create(ctx context.Context, pay *entity.Pay) error
	FindLatestByOrderID(ctx context.Context, orderID uint64) (*entity.Pay, error)
}

type notificationDispatcher interface {
	Enqueue(job notifier.Job) bool
}

type confirmationMailer interface {
	SendPaymentConfirmation(order *entity.Order, payment *provider.PaymentInfo) bool
}

type CheckoutService struct {
	orderRepo   orderRepository
	payRepo     payRepository
	tokens      store.TokenStore
	providerReg *provider.Registry
	dispatcher  notificationDispatcher
	mailer      confirmationMailer
	checkoutCfg config.CheckoutConfig
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewCheckoutService(
	orderRepo orderRepository,
	payRepo payRepository,
	tokens store.TokenStore,
	providerReg *provider.Registry,
	dispatcher notificationDispatcher,
	mailer confirmationMailer,
	checkoutCfg config.CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:   orderRepo,
		payRepo:     payRepo,
		tokens:      tokens,
		providerReg: providerReg,
		dispatcher:  dispatcher,
		mailer:      mailer,
		checkoutCfg: checkoutCfg,
		logger:      factory.NewModuleLogger("checkout-service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IssueToken mints the checkout token for an order, replacing any prior
// one. One active token per order.
func (s *CheckoutService) IssueToken(ctx context.Context, orderID uint64, fp security.Fingerprint) (*entity.CheckoutToken, error) {
	value, err := security.GenerateToken()
	if err != nil {
		return nil, err
	}

	token := security.NewCheckoutToken(value, orderID, fp, s.now())
	if err := s.tokens.Put(ctx, orderID, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ValidateAndConsume checks the presented token against the stored one
// and, on success, atomically increments its usage count. The compare-and-
// swap retry keeps concurrent validations from pushing the count past the
// ceiling.
func (s *CheckoutService) ValidateAndConsume(ctx context.Context, orderID uint64, presented string) (*entity.CheckoutToken, error) {
	for {
		token, version, err := s.tokens.Get(ctx, orderID)
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		if err != nil {
			return nil, err
		}

		// Expiry first, so an expired entry answers the same regardless
		// of what token the caller presents.
		now := s.now()
		if now.Sub(token.CreatedAt) > s.checkoutCfg.TokenTTL {
			return nil, ErrTokenExpired
		}

		if token.Token != presented {
			return nil, ErrTokenMismatch
		}
		if token.UsageCount >= s.checkoutCfg.TokenMaxUses {
			return nil, ErrTokenUsageExceeded
		}

		token.UsageCount++
		token.LastUsedAt = &now

		swapped, err := s.tokens.CompareAndSwap(ctx, orderID, version, token)
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		if err != nil {
			return nil, err
		}
		if swapped {
			return token, nil
		}
		// Lost the race against a concurrent validation; re-read and retry.
	}
}

type AccessResult struct {
	Token *entity.CheckoutToken

	// FingerprintOK is advisory. Dynamic IPs and proxies are common, so
	// the caller decides whether to act on it.
	FingerprintOK bool
}

// ValidateCheckoutAccess is the call-site wrapper used by the processor
// return redirect: consume the token, then report fingerprint continuity.
func (s *CheckoutService) ValidateCheckoutAccess(ctx context.Context, orderID uint64, presented string, fp security.Fingerprint) (*AccessResult, error) {
	token, err := s.ValidateAndConsume(ctx, orderID, presented)
	if err != nil {
		return nil, err
	}

	stored := security.Fingerprint{IP: token.OriginIP, UserAgent: token.UserAgent}
	return &AccessResult{
		Token:         token,
		FingerprintOK: security.FingerprintsCompatible(stored, fp),
	}, nil
}

type CheckoutResult struct {
	Preference *provider.Preference
	Token      *entity.CheckoutToken
}

// CreateCheckout creates a payment preference for the order and binds a
// fresh checkout token to the requesting client.
func (s *CheckoutService) CreateCheckout(ctx context.Context, orderID uint64, fp security.Fingerprint) (*CheckoutResult, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == entity.OrderStatusPaid {
		return nil, ErrInvalidStatus
	}

	providerClient, err := s.providerReg.Get(provider.ProviderNameMercadoPago)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	token, err := s.IssueToken(ctx, orderID, fp)
	if err != nil {
		return nil, err
	}

	items := make([]provider.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, provider.LineItem{
			Title:          item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	payerName := ""
	if order.UserName != nil {
		payerName = *order.UserName
	}

	preference, err := providerClient.CreatePreference(ctx, &provider.PreferenceInput{
		OrderID:    order.ID,
		Token:      token.Token,
		Items:      items,
		PayerName:  payerName,
		PayerEmail: order.RecipientEmail(),
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{Preference: preference, Token: token}, nil
}

func (s *CheckoutService) batchSize() int32 {
	if s.checkoutCfg.JobBatchSize > 0 {
		return s.checkoutCfg.JobBatchSize
	}
	return defaultBatchSize
}
