package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/notifier"
	"github.com/velorum-store/ms-go-checkout/app/provider"
	"github.com/velorum-store/ms-go-checkout/app/repository"
)

const (
	paymentStatusApproved  = "approved"
	paymentStatusPending   = "pending"
	paymentStatusInProcess = "in_process"
	paymentStatusRejected  = "rejected"
	paymentStatusCancelled = "cancelled"
)

// HandlePaymentNotification resolves a processor webhook to an order and
// applies the status transition at most once. A missing or unknown order
// is logged and acknowledged; the processor retries deliveries that fail,
// so only gateway errors propagate.
func (s *CheckoutService) HandlePaymentNotification(ctx context.Context, paymentID string) error {
	providerClient, err := s.providerReg.Get(provider.ProviderNameMercadoPago)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return ErrProviderUnsupported
		}
		return err
	}

	info, err := providerClient.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	orderID, err := strconv.ParseUint(strings.TrimSpace(info.ExternalReference), 10, 64)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"payment_id":         info.PaymentID,
			"external_reference": info.ExternalReference,
		}).Warn("Payment notification carries no usable order reference")
		return nil
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		s.logger.WithFields(logrus.Fields{
			"payment_id": info.PaymentID,
			"order_id":   orderID,
		}).Warn("Payment notification for unknown order")
		return nil
	}

	now := s.now()

	switch info.Status {
	case paymentStatusApproved:
		amountCents := int64(math.Round(info.TransactionAmount * 100))

		first, err := s.orderRepo.MarkPaid(ctx, order.ID, amountCents, now)
		if err != nil {
			return err
		}
		if !first {
			s.logger.WithFields(logrus.Fields{
				"payment_id": info.PaymentID,
				"order_id":   order.ID,
			}).Debug("Order already paid, duplicate notification ignored")
			return nil
		}

		pay := &entity.Pay{
			OrderID:           order.ID,
			Reference:         uuid.NewString(),
			ProviderPaymentID: info.PaymentID,
			Status:            entity.PayStatusCompleted,
			StatusDetail:      info.StatusDetail,
			AmountCents:       amountCents,
			PaymentMethodID:   info.PaymentMethodID,
			CreatedAt:         now,
		}
		if err := s.payRepo.Create(ctx, pay); err != nil {
			if errors.Is(err, repository.ErrPayAlreadyExists) {
				s.logger.WithFields(logrus.Fields{
					"payment_id": info.PaymentID,
					"order_id":   order.ID,
				}).Debug("Pay record already exists, duplicate notification ignored")
				return nil
			}
			// The order did transition; losing the pay row is not fatal.
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to persist pay record")
		}

		order.Status = entity.OrderStatusPaid
		order.TotalCents = amountCents
		s.dispatcher.Enqueue(notifier.Job{Order: order, Payment: info})
		return nil

	case paymentStatusPending, paymentStatusInProcess:
		return s.orderRepo.UpdateStatus(ctx, order.ID, entity.OrderStatusPending, now)
	case paymentStatusRejected:
		return s.orderRepo.UpdateStatus(ctx, order.ID, entity.OrderStatusRejected, now)
	case paymentStatusCancelled:
		return s.orderRepo.UpdateStatus(ctx, order.ID, entity.OrderStatusCanceled, now)
	default:
		s.logger.WithFields(logrus.Fields{
			"payment_id": info.PaymentID,
			"order_id":   order.ID,
			"status":     info.Status,
		}).Info("Unhandled payment status, order left untouched")
		return nil
	}
}
