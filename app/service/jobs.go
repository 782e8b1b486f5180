package service

import (
	"context"
	"fmt"

	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/provider"
)

// RunResendConfirmationEmailsBatch re-sends confirmation emails for paid
// orders whose first dispatch never succeeded. Safe to run repeatedly:
// only orders with an unset confirmation flag are picked up, and the flag
// flips only on a successful send.
func (s *CheckoutService) RunResendConfirmationEmailsBatch(ctx context.Context) error {
	orders, err := s.orderRepo.ListPaidWithoutConfirmation(ctx, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range orders {
		if order == nil {
			continue
		}
		if order.RecipientEmail() == "" {
			s.logger.WithField("order_id", order.ID).Warn("Paid order has no recipient email, skipping resend")
			continue
		}

		info, err := s.paymentInfoForOrder(ctx, order)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		if !s.mailer.SendPaymentConfirmation(order, info) {
			firstErr = keepFirstErr(firstErr, fmt.Errorf("confirmation email failed for order %d", order.ID))
			continue
		}

		if err := s.orderRepo.MarkEmailConfirmationSent(ctx, order.ID, s.now()); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// paymentInfoForOrder rebuilds the payment context from the recorded Pay
// row, synthesizing sane defaults when none survived.
func (s *CheckoutService) paymentInfoForOrder(ctx context.Context, order *entity.Order) (*provider.PaymentInfo, error) {
	pay, err := s.payRepo.FindLatestByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return &provider.PaymentInfo{
			PaymentID:         "unknown",
			Status:            paymentStatusApproved,
			PaymentMethodID:   "unknown",
			TransactionAmount: float64(order.TotalCents) / 100,
		}, nil
	}

	return &provider.PaymentInfo{
		PaymentID:         pay.ProviderPaymentID,
		Status:            paymentStatusApproved,
		StatusDetail:      pay.StatusDetail,
		PaymentMethodID:   pay.PaymentMethodID,
		TransactionAmount: float64(pay.AmountCents) / 100,
	}, nil
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
