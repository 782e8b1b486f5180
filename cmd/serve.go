package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/velorum-store/ms-go-checkout/app/controller"
	"github.com/velorum-store/ms-go-checkout/app/notifier"
	"github.com/velorum-store/ms-go-checkout/app/provider"
	"github.com/velorum-store/ms-go-checkout/app/repository"
	"github.com/velorum-store/ms-go-checkout/app/service"
	"github.com/velorum-store/ms-go-checkout/app/store"
	"github.com/velorum-store/ms-go-checkout/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP server handling checkout preferences, token validation, and processor webhooks.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	checkoutController := controller.NewCheckoutController(checkoutService)
	e := setupHTTPServer(checkoutController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(checkoutController *controller.CheckoutController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(ensureRequestID())

	e.GET("/health", checkoutController.Health)

	checkout := e.Group("/checkout")
	checkout.POST("/orders/:id/preference", checkoutController.CreateCheckout)
	checkout.GET("/validate", checkoutController.ValidateCheckout)

	webhooks := e.Group("/webhooks")
	webhooks.POST("/mercadopago", checkoutController.HandleWebhook)

	return e
}

// ensureRequestID keeps the caller's X-Request-ID or generates one.
// Browsers and the payment processor never send it.
func ensureRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
				ctx.Request().Header.Set(echo.HeaderXRequestID, requestID)
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func mustCreateCheckoutService() (*config.Config, *service.CheckoutService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	orderRepo := repository.NewOrderRepository(db)
	payRepo := repository.NewPayRepository(db)

	// Entries are retained past the token TTL so late validations report
	// expiry instead of a missing token.
	tokenStore := store.NewMemoryTokenStore(2 * cfg.Checkout.TokenTTL)

	mercadoPago := provider.NewMercadoPagoProvider(provider.MercadoPagoConfig{
		AccessToken:         cfg.MercadoPago.AccessToken,
		BaseURL:             cfg.MercadoPago.BaseURL,
		CheckoutBaseURL:     cfg.MercadoPago.CheckoutBaseURL,
		NotificationURL:     cfg.MercadoPago.NotificationURL,
		Currency:            cfg.MercadoPago.Currency,
		StatementDescriptor: cfg.MercadoPago.StatementDescriptor,
		HTTPTimeout:         cfg.MercadoPago.HTTPTimeout,
	})
	providerRegistry := provider.NewRegistry(mercadoPago)

	mailer := notifier.NewMailer(notifier.NewSMTPSender(notifier.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}), cfg.SMTP.MaxRetries)

	alerter := notifier.NewTelegramAlerter(notifier.TelegramConfig{
		BotToken:    cfg.Telegram.BotToken,
		ChatID:      cfg.Telegram.ChatID,
		HTTPTimeout: cfg.Telegram.HTTPTimeout,
	})

	dispatcher := notifier.NewDispatcher(cfg.Notify.Workers, cfg.Notify.QueueSize, mailer, alerter, orderRepo)

	checkoutService := service.NewCheckoutService(
		orderRepo,
		payRepo,
		tokenStore,
		providerRegistry,
		dispatcher,
		mailer,
		cfg.Checkout,
	)

	cleanup := func() {
		dispatcher.Close()
		tokenStore.Close()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, checkoutService, cleanup
}
