package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"github.com/nimeshabuddhika/book-order-payments/pkg/views"
	"github.com/nimeshabuddhika/book-order-payments/services/notification-worker/internal/observability"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Recipient roles.
const (
	RoleParent   = "parent"
	RoleSupplier = "supplier"
	RoleAdmin    = "admin"
)

type Email struct {
	Role      string
	ToName    string
	ToAddress string
	Subject   string
	Text      string
}

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SendError is a non-2xx answer from the mail provider.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("mail provider returned %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether resending the same email cannot succeed.
func (e *SendError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromAddress, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) error {
	to := mail.NewEmail(email.ToName, email.ToAddress)
	htmlBody := "<pre>" + html.EscapeString(email.Text) + "</pre>"
	msg := mail.NewSingleEmail(m.from, email.Subject, to, email.Text, htmlBody)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &SendError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// LogMailer stands in for SendGrid when no API key is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, email Email) error {
	l.logger.Info("email_skipped_no_provider",
		zap.String("role", email.Role),
		zap.String("to", email.ToAddress),
		zap.String("subject", email.Subject))
	return nil
}

// Composer decides who hears about an event and what they are told.
type Composer struct {
	SupplierEmail string
	AdminEmail    string
}

func (c Composer) Compose(event views.OrderEvent) []Email {
	var out []Email
	switch event.EventType {
	case views.EventOrderCreated:
		subject := fmt.Sprintf("New order %s awaiting payment", event.TxRef)
		body := orderSummary(event)
		out = c.staff(out, subject, body)
	case views.EventOrderPaid:
		if event.ParentEmail != "" {
			out = append(out, Email{
				Role:      RoleParent,
				ToName:    event.ParentName,
				ToAddress: event.ParentEmail,
				Subject:   fmt.Sprintf("Payment received for order %s", event.TxRef),
				Text: fmt.Sprintf("Hello %s,\n\nWe have received your payment. Thank you!\n\n%s",
					event.ParentName, orderSummary(event)),
			})
		}
		subject := fmt.Sprintf("Order %s paid", event.TxRef)
		body := orderSummary(event) + fmt.Sprintf("\nSupplier share: %s\nMarkup: %s\n",
			money(event.SupplierShare, event.Currency), money(event.MarkupAmount, event.Currency))
		out = c.staff(out, subject, body)
	}
	return out
}

func (c Composer) staff(out []Email, subject, body string) []Email {
	if c.SupplierEmail != "" {
		out = append(out, Email{Role: RoleSupplier, ToAddress: c.SupplierEmail, Subject: subject, Text: body})
	}
	if c.AdminEmail != "" {
		out = append(out, Email{Role: RoleAdmin, ToAddress: c.AdminEmail, Subject: subject, Text: body})
	}
	return out
}

func orderSummary(e views.OrderEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order reference: %s\n", e.TxRef)
	fmt.Fprintf(&b, "Parent: %s <%s>\n", e.ParentName, e.ParentEmail)
	b.WriteString("Items:\n")
	for _, it := range e.Items {
		title := it.Title
		if title == "" {
			title = it.ISBN
		}
		fmt.Fprintf(&b, "  - %s x%d @ %s\n", title, it.Quantity, money(it.UnitPrice, e.Currency))
	}
	fmt.Fprintf(&b, "Total: %s\n", money(e.TotalAmount, e.Currency))
	if e.ProviderTransactionID != "" {
		fmt.Fprintf(&b, "Payment transaction: %s\n", e.ProviderTransactionID)
	}
	return b.String()
}

func money(amount int64, currency string) string {
	return fmt.Sprintf("%s %d", currency, amount)
}

type NotificationService interface {
	// Handle delivers every email for the event. The error lists the recipients that still failed.
	Handle(ctx context.Context, event views.OrderEvent) error
}

type NotificationServiceConfig struct {
	Logger      *zap.Logger
	Mailer      Mailer
	Composer    Composer
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	SendTimeout time.Duration
}

type NotificationServiceImpl struct {
	NotificationServiceConfig
}

func NewNotificationService(cfg NotificationServiceConfig) NotificationService {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &NotificationServiceImpl{NotificationServiceConfig: cfg}
}

func (n *NotificationServiceImpl) Handle(ctx context.Context, event views.OrderEvent) error {
	emails := n.Composer.Compose(event)
	if len(emails) == 0 {
		n.Logger.Warn("no_recipients_for_event",
			zap.String(pkg.EventId, event.EventID),
			zap.String(pkg.EventType, string(event.EventType)))
		return nil
	}

	var errs []error
	for _, email := range emails {
		err := utils.RetryWithBackoff(ctx, n.MaxAttempts, n.BaseBackoff, n.MaxBackoff, func(attempt int) (bool, error) {
			sendCtx, cancel := context.WithTimeout(ctx, n.SendTimeout)
			defer cancel()
			err := n.Mailer.Send(sendCtx, email)
			if err != nil {
				n.Logger.Warn("email_send_failed",
					zap.String(pkg.EventId, event.EventID),
					zap.String("role", email.Role),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}
			var sendErr *SendError
			return errors.As(err, &sendErr) && sendErr.Permanent(), err
		})
		if err != nil {
			observability.EmailsSent.WithLabelValues(email.Role, "failed").Inc()
			errs = append(errs, fmt.Errorf("%s %s: %w", email.Role, email.ToAddress, err))
			continue
		}
		observability.EmailsSent.WithLabelValues(email.Role, "sent").Inc()
		n.Logger.Info("email_sent",
			zap.String(pkg.EventId, event.EventID),
			zap.String(pkg.OrderId, event.OrderID),
			zap.String("role", email.Role))
	}
	return errors.Join(errs...)
}
