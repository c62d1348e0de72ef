package notifications

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"go.uber.org/multierr"
)

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type chatSender interface {
	SendMessage(ctx context.Context, chatID, html string) error
}

// Params groups the channels of a Dispatcher. Nil channels are skipped.
type Params struct {
	Mail       mailSender
	Chat       chatSender
	ChatIDs    []string
	AlertEmail string
	StoreName  string
	Logger     *logger.Logger
}

// Dispatcher sends order notifications by email and operator chat. Channels
// fail independently; the combined error lists every failed send.
type Dispatcher struct {
	mail       mailSender
	chat       chatSender
	chatIDs    []string
	alertEmail string
	storeName  string
	logg       *logger.Logger
}

// NewDispatcher builds a dispatcher and warns about missing channels.
func NewDispatcher(p Params) *Dispatcher {
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	d := &Dispatcher{
		mail:       p.Mail,
		chat:       p.Chat,
		alertEmail: strings.TrimSpace(p.AlertEmail),
		storeName:  strings.TrimSpace(p.StoreName),
		logg:       logg,
	}
	if d.storeName == "" {
		d.storeName = "Storefront"
	}
	for _, id := range p.ChatIDs {
		if id = strings.TrimSpace(id); id != "" {
			d.chatIDs = append(d.chatIDs, id)
		}
	}
	ctx := context.Background()
	if d.mail == nil {
		logg.Warn(ctx, "notifications.mail.disabled")
	}
	if d.chat == nil || len(d.chatIDs) == 0 {
		logg.Warn(ctx, "notifications.chat.disabled")
	}
	return d
}

func (d *Dispatcher) email(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if d.mail == nil || to == "" {
		return nil
	}
	if err := d.mail.Send(ctx, mailer.Message{To: []string{to}, Subject: subject, HTML: body}); err != nil {
		return fmt.Errorf("email %q: %w", subject, err)
	}
	return nil
}

func (d *Dispatcher) broadcast(ctx context.Context, text string) error {
	if d.chat == nil {
		return nil
	}
	var errs error
	for _, id := range d.chatIDs {
		if err := d.chat.SendMessage(ctx, id, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("chat %s: %w", id, err))
		}
	}
	return errs
}

func (d *Dispatcher) CustomerOrderPlaced(ctx context.Context, order *models.Order) error {
	body, err := renderEmail(orderPlacedEmail, d.view(order))
	if err != nil {
		return err
	}
	return d.email(ctx, order.ContactEmail(), fmt.Sprintf("%s order %s confirmed", d.storeName, shortID(order)), body)
}

func (d *Dispatcher) OperatorsOrderPlaced(ctx context.Context, order *models.Order) error {
	errs := d.broadcast(ctx, operatorOrderText("🛒 New order", order))
	if d.alertEmail != "" {
		body, err := renderEmail(orderAlertEmail, d.view(order))
		if err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, d.email(ctx, d.alertEmail, fmt.Sprintf("New order %s", shortID(order)), body))
	}
	return errs
}

func (d *Dispatcher) PaymentConfirmed(ctx context.Context, order *models.Order) error {
	body, err := renderEmail(paymentConfirmedEmail, d.view(order))
	if err != nil {
		return err
	}
	return d.email(ctx, order.ContactEmail(), fmt.Sprintf("Payment received for order %s", shortID(order)), body)
}

func (d *Dispatcher) PaymentFailed(ctx context.Context, order *models.Order, reason string) error {
	return d.broadcast(ctx, operatorOrderText("⚠️ Payment failed", order)+reasonLine(reason))
}

func (d *Dispatcher) Refunded(ctx context.Context, order *models.Order) error {
	return d.broadcast(ctx, operatorOrderText("↩️ Refunded", order))
}

func (d *Dispatcher) Disputed(ctx context.Context, order *models.Order, reason string) error {
	return d.broadcast(ctx, operatorOrderText("🚨 URGENT: payment disputed", order)+reasonLine(reason))
}

func (d *Dispatcher) CancelOTP(ctx context.Context, order *models.Order, code string, ttl time.Duration) error {
	view := d.view(order)
	view.Code = code
	view.Minutes = int(ttl.Minutes())
	body, err := renderEmail(cancelOTPEmail, view)
	if err != nil {
		return err
	}
	to := order.ContactEmail()
	if to == "" {
		return fmt.Errorf("order %s has no contact email", order.ID)
	}
	return d.email(ctx, to, fmt.Sprintf("Your cancellation code for order %s", shortID(order)), body)
}

func (d *Dispatcher) OrderCancelled(ctx context.Context, order *models.Order) error {
	body, err := renderEmail(orderCancelledEmail, d.view(order))
	if err != nil {
		return err
	}
	return d.email(ctx, order.ContactEmail(), fmt.Sprintf("Order %s cancelled", shortID(order)), body)
}

func shortID(order *models.Order) string {
	id := order.ID.String()
	return strings.ToUpper(id[:8])
}

func operatorOrderText(title string, order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "Order: <code>%s</code>\n", order.ID)
	fmt.Fprintf(&b, "Total: €%s (%s)\n", order.FinalTotalCents, order.PaymentMethod)
	if name := strings.TrimSpace(order.Contact.Name); name != "" {
		fmt.Fprintf(&b, "Customer: %s\n", html.EscapeString(name))
	}
	if email := order.ContactEmail(); email != "" {
		fmt.Fprintf(&b, "Email: %s\n", html.EscapeString(email))
	}
	if order.IsGuest() {
		b.WriteString("Guest checkout\n")
	}
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %d × %s", item.Quantity, html.EscapeString(item.Name))
		if item.Color != "" {
			fmt.Fprintf(&b, " (%s)", html.EscapeString(item.Color))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func reasonLine(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return ""
	}
	return "\nReason: " + html.EscapeString(reason)
}
