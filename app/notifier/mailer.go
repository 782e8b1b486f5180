package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/factory"
	"github.com/velorum-store/ms-go-checkout/app/provider"
	"gopkg.in/gomail.v2"
)

const defaultEmailMaxRetries = 3

type EmailSender interface {
	Send(to, subject, htmlBody, textBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	dialer := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	return dialer.DialAndSend(m)
}

// Mailer sends the payment confirmation email with bounded retries and
// exponential backoff. It blocks the calling worker between attempts, so
// it must never run on the webhook request path.
type Mailer struct {
	sender     EmailSender
	maxRetries int
	sleep      func(time.Duration)
	logger     logrus.FieldLogger
}

func NewMailer(sender EmailSender, maxRetries int) *Mailer {
	if maxRetries <= 0 {
		maxRetries = defaultEmailMaxRetries
	}
	return &Mailer{
		sender:     sender,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
		logger:     factory.NewModuleLogger("notifier-mailer"),
	}
}

// SendPaymentConfirmation returns true only when a send succeeded. A
// missing recipient email fails immediately without retrying.
func (m *Mailer) SendPaymentConfirmation(order *entity.Order, payment *provider.PaymentInfo) bool {
	to := order.RecipientEmail()
	if to == "" {
		m.logger.WithField("order_id", order.ID).Warn("Order has no recipient email, skipping confirmation")
		return false
	}

	subject := fmt.Sprintf("Confirmación de pago - Pedido #%d", order.ID)
	htmlBody, textBody, err := renderConfirmation(order, payment)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to render confirmation email")
		return false
	}

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		err := m.sender.Send(to, subject, htmlBody, textBody)
		if err == nil {
			m.logger.WithFields(logrus.Fields{
				"order_id": order.ID,
				"attempt":  attempt,
			}).Info("Confirmation email sent")
			return true
		}

		m.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"attempt":  attempt,
		}).Warn("Confirmation email send failed")

		if attempt < m.maxRetries {
			m.sleep(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}

	return false
}

var confirmationHTML = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"pesos": func(cents int64) string { return fmt.Sprintf("%.2f", float64(cents)/100) },
}).Parse(`<html>
<body>
<h2>¡Gracias por tu compra!</h2>
<p>Tu pago del pedido <strong>#{{.Order.ID}}</strong> fue confirmado.</p>
<table>
{{range .Order.Items}}<tr><td>{{.ProductName}}</td><td>x{{.Quantity}}</td><td>${{pesos .SubtotalCents}}</td></tr>
{{end}}</table>
<p>Total: <strong>${{pesos .Order.TotalCents}}</strong></p>
<p>Medio de pago: {{.Payment.PaymentMethodID}} (pago {{.Payment.PaymentID}})</p>
</body>
</html>`))

func renderConfirmation(order *entity.Order, payment *provider.PaymentInfo) (string, string, error) {
	data := struct {
		Order   *entity.Order
		Payment *provider.PaymentInfo
	}{Order: order, Payment: payment}

	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, data); err != nil {
		return "", "", err
	}

	var text bytes.Buffer
	fmt.Fprintf(&text, "¡Gracias por tu compra!\n\n")
	fmt.Fprintf(&text, "Tu pago del pedido #%d fue confirmado.\n\n", order.ID)
	for _, item := range order.Items {
		fmt.Fprintf(&text, "- %s x%d ($%.2f)\n", item.ProductName, item.Quantity, float64(item.SubtotalCents)/100)
	}
	fmt.Fprintf(&text, "\nTotal: $%.2f\n", float64(order.TotalCents)/100)
	fmt.Fprintf(&text, "Medio de pago: %s (pago %s)\n", payment.PaymentMethodID, payment.PaymentID)

	return html.String(), text.String(), nil
}
