package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/velorum-store/ms-go-checkout/app/entity"
	"github.com/velorum-store/ms-go-checkout/app/factory"
	"github.com/velorum-store/ms-go-checkout/app/provider"
)

type TelegramConfig struct {
	BotToken string
	ChatID   string

	// BaseURL defaults to the public bot API; overridable for tests.
	BaseURL     string
	HTTPTimeout time.Duration
}

// TelegramAlerter pushes a best-effort "order paid" message to one
// configured chat. A missing token or chat id disables it silently.
type TelegramAlerter struct {
	cfg    TelegramConfig
	client *http.Client
	logger logrus.FieldLogger
}

func NewTelegramAlerter(cfg TelegramConfig) *TelegramAlerter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TelegramAlerter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("notifier-telegram"),
	}
}

func (a *TelegramAlerter) Enabled() bool {
	return strings.TrimSpace(a.cfg.BotToken) != "" && strings.TrimSpace(a.cfg.ChatID) != ""
}

func (a *TelegramAlerter) OrderPaid(order *entity.Order, payment *provider.PaymentInfo) error {
	if !a.Enabled() {
		a.logger.Debug("Telegram token or chat id not configured, skipping alert")
		return nil
	}

	var lines []string
	lines = append(lines, "<b>Nuevo pago recibido</b>")
	lines = append(lines, fmt.Sprintf("Pedido: <code>%d</code>", order.ID))
	lines = append(lines, fmt.Sprintf("Estado: <b>%s</b>", order.Status))
	lines = append(lines, fmt.Sprintf("Total: $%.2f", float64(order.TotalCents)/100))

	switch {
	case order.UserName != nil && order.UserEmail != nil:
		lines = append(lines, fmt.Sprintf("Usuario: %s (%s)", *order.UserName, *order.UserEmail))
	case order.UserName != nil:
		lines = append(lines, fmt.Sprintf("Usuario: %s", *order.UserName))
	case order.GuestEmail != nil:
		lines = append(lines, fmt.Sprintf("Invitado: %s", *order.GuestEmail))
	default:
		lines = append(lines, "Usuario: N/A")
	}

	if len(order.Items) > 0 {
		lines = append(lines, "Items:")
		for _, item := range order.Items {
			lines = append(lines, fmt.Sprintf("- %s x%d ($%.2f)", item.ProductName, item.Quantity, float64(item.SubtotalCents)/100))
		}
	}
	if payment != nil {
		lines = append(lines, fmt.Sprintf("Pago: %s (%s)", payment.PaymentID, payment.PaymentMethodID))
	}

	return a.sendText(strings.Join(lines, "\n"))
}

func (a *TelegramAlerter) sendText(text string) error {
	payload := map[string]string{
		"chat_id":    a.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := a.cfg.BaseURL + "/bot" + a.cfg.BotToken + "/sendMessage"
	resp, err := a.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram sendMessage failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}
