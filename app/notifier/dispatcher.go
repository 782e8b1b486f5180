package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/factory"
	"github.com/velorum-store/ms-go-checkout/app/provider"
)

// Job is one confirmed payment fanned out to the notification channels.
type Job struct {
	Order   *entity.Order
	Payment *provider.PaymentInfo
}

type confirmationMailer interface {
	SendPaymentConfirmation(order *entity.Order, payment *provider.PaymentInfo) bool
}

type paidAlerter interface {
	OrderPaid(order *entity.Order, payment *provider.PaymentInfo) error
}

type orderConfirmer interface {
	MarkEmailConfirmationSent(ctx context.Context, id uint64, now time.Time) error
}

// Dispatcher runs notification side effects off the webhook response path
// on a bounded worker pool. The mailer's retry loop blocks only the worker
// that owns the job; the chat alert runs on its own goroutine and its
// failures never propagate.
type Dispatcher struct {
	jobs    chan Job
	mailer  confirmationMailer
	alerter paidAlerter
	orders  orderConfirmer
	logger  logrus.FieldLogger

	workerWG  sync.WaitGroup
	alertWG   sync.WaitGroup
	closeOnce sync.Once
}

func NewDispatcher(workers, queueSize int, mailer confirmationMailer, alerter paidAlerter, orders orderConfirmer) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Dispatcher{
		jobs:    make(chan Job, queueSize),
		mailer:  mailer,
		alerter: alerter,
		orders:  orders,
		logger:  factory.NewModuleLogger("notifier-dispatcher"),
	}

	d.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue hands a job to the pool without blocking the caller. When the
// queue is saturated the job is dropped and logged; the resend sweep picks
// the order up later via its unset confirmation flag.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		d.logger.WithField("order_id", job.Order.ID).Error("Notification queue full, dropping job")
		return false
	}
}

// Close stops accepting jobs and drains pending work, alerts included.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.jobs) })
	d.workerWG.Wait()
	d.alertWG.Wait()
}

func (d *Dispatcher) worker() {
	defer d.workerWG.Done()

	for job := range d.jobs {
		d.alertWG.Add(1)
		go func(job Job) {
			defer d.alertWG.Done()
			if err := d.alerter.OrderPaid(job.Order, job.Payment); err != nil {
				d.logger.WithError(err).WithField("order_id", job.Order.ID).Warn("Paid alert failed")
			}
		}(job)

		if !d.mailer.SendPaymentConfirmation(job.Order, job.Payment) {
			d.logger.WithField("order_id", job.Order.ID).Warn("Confirmation email not sent, leaving flag unset for resend sweep")
			continue
		}

		if err := d.orders.MarkEmailConfirmationSent(context.Background(), job.Order.ID, time.Now().UTC()); err != nil {
			d.logger.WithError(err).WithField("order_id", job.Order.ID).Error("Failed to mark confirmation email as sent")
		}
	}
}
