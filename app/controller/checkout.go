package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/velorum-store/ms-go-checkout/app/factory"
	"github.com/velorum-store/ms-go-checkout/app/mapper"
	"github.com/velorum-store/ms-go-checkout/app/provider"
	"github.com/velorum-store/ms-go-checkout/app/security"
	"github.com/velorum-store/ms-go-checkout/app/service"
	"github.com/velorum-store/ms-go-checkout/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) CreateCheckout(ctx echo.Context) error {
	req, err := types.NewCreateCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	fp := security.Fingerprint{IP: req.IP, UserAgent: req.UserAgent}
	result, err := c.checkoutService.CreateCheckout(ctx.Request().Context(), req.OrderID, fp)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusConflict, "order is already paid")
		case errors.Is(err, provider.ErrGateway):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment gateway rejected preference")
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway error")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create checkout failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, mapper.CheckoutResultToResponse(result))
}

func (c *CheckoutController) ValidateCheckout(ctx echo.Context) error {
	req, err := types.NewValidateCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	fp := security.Fingerprint{IP: req.IP, UserAgent: req.UserAgent}
	result, err := c.checkoutService.ValidateCheckoutAccess(ctx.Request().Context(), req.OrderID, req.Token, fp)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenNotFound):
			return c.writeError(ctx, http.StatusNotFound, "checkout token not found")
		case errors.Is(err, service.ErrTokenMismatch):
			return c.writeError(ctx, http.StatusUnauthorized, "checkout token mismatch")
		case errors.Is(err, service.ErrTokenExpired):
			return c.writeError(ctx, http.StatusGone, "checkout token expired")
		case errors.Is(err, service.ErrTokenUsageExceeded):
			return c.writeError(ctx, http.StatusTooManyRequests, "checkout token usage limit exceeded")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Validate checkout failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.AccessResultToResponse(result))
}

// HandleWebhook acknowledges processor deliveries. Unknown orders and
// non-payment topics return 200 so the processor does not storm retries;
// only gateway failures ask for a redelivery.
func (c *CheckoutController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if !req.IsPayment() {
		return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Notification ignored"})
	}

	if err := c.checkoutService.HandlePaymentNotification(ctx.Request().Context(), req.PaymentID); err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle payment notification failed")
		if errors.Is(err, provider.ErrGateway) {
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway error")
		}
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Payment notification processed"})
}

func (c *CheckoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
