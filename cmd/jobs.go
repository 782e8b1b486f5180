package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/velorum-store/ms-go-checkout/app/service"
	"github.com/velorum-store/ms-go-checkout/config"
)

var (
	workerMode bool
)

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "Run confirmation email related commands",
}

var emailsResendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Re-send confirmation emails for paid orders that never got one",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"emails_resend",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.EmailResendInterval },
			func(s *service.CheckoutService, ctx context.Context) error {
				return s.RunResendConfirmationEmailsBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(emailsCmd)
	emailsCmd.AddCommand(emailsResendCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.CheckoutService, ctx context.Context) error,
) {
	cfg, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), checkoutService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(checkoutService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	checkoutService *service.CheckoutService,
	fn func(s *service.CheckoutService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(checkoutService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(checkoutService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
