package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type fakeMail struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mailer.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeChat struct {
	sent   map[string][]string
	failOn string
}

func (f *fakeChat) SendMessage(_ context.Context, chatID, text string) error {
	if chatID == f.failOn {
		return errors.New("chat not found")
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:              uuid.MustParse("7f1c2a3b-0000-4000-8000-000000000001"),
		Items:           []models.OrderItem{{Name: "Lamp <XL>", Quantity: 2, UnitPrice: 1999, Color: "Red"}},
		TotalCents:      3998,
		DiscountCents:   200,
		FinalTotalCents: 3798,
		PaymentMethod:   enums.PaymentMethodCard,
		Contact:         types.Contact{Name: "Ada", Email: "ada@example.com"},
		Shipping:        types.ShippingAddress{Address: "1 Main St", Country: "MT"},
	}
}

func TestCustomerOrderPlacedEmail(t *testing.T) {
	mail := &fakeMail{}
	d := NewDispatcher(Params{Mail: mail, StoreName: "Casa"})

	require.NoError(t, d.CustomerOrderPlaced(context.Background(), sampleOrder()))
	require.Len(t, mail.sent, 1)
	msg := mail.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Equal(t, "Casa order 7F1C2A3B confirmed", msg.Subject)
	assert.Contains(t, msg.HTML, "Lamp &lt;XL&gt;")
	assert.Contains(t, msg.HTML, "€37.98")
	assert.Contains(t, msg.HTML, "-€2.00")
}

func TestOperatorsOrderPlacedFansOut(t *testing.T) {
	mail := &fakeMail{}
	chat := &fakeChat{sent: map[string][]string{}, failOn: "bad"}
	d := NewDispatcher(Params{Mail: mail, Chat: chat, ChatIDs: []string{"1", " bad ", "2", ""}, AlertEmail: "ops@example.com"})

	err := d.OperatorsOrderPlaced(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)

	require.Len(t, chat.sent["1"], 1)
	require.Len(t, chat.sent["2"], 1)
	text := chat.sent["1"][0]
	assert.True(t, strings.HasPrefix(text, "<b>🛒 New order</b>"))
	assert.Contains(t, text, "2 × Lamp &lt;XL&gt; (Red)")
	assert.Contains(t, text, "€37.98 (CARD)")

	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, mail.sent[0].To)
}

func TestDisputedIsUrgent(t *testing.T) {
	chat := &fakeChat{sent: map[string][]string{}}
	d := NewDispatcher(Params{Chat: chat, ChatIDs: []string{"ops"}})
	require.NoError(t, d.Disputed(context.Background(), sampleOrder(), "fraudulent"))
	text := chat.sent["ops"][0]
	assert.Contains(t, text, "URGENT")
	assert.Contains(t, text, "Reason: fraudulent")
}

func TestCancelOTPEmail(t *testing.T) {
	mail := &fakeMail{}
	d := NewDispatcher(Params{Mail: mail})
	require.NoError(t, d.CancelOTP(context.Background(), sampleOrder(), "042917", 10*time.Minute))
	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].HTML, "042917")
	assert.Contains(t, mail.sent[0].HTML, "10 minutes")

	order := sampleOrder()
	order.Contact.Email = ""
	assert.Error(t, d.CancelOTP(context.Background(), order, "042917", 10*time.Minute))
}

func TestMissingChannelsAreSkipped(t *testing.T) {
	d := NewDispatcher(Params{})
	order := sampleOrder()
	assert.NoError(t, d.CustomerOrderPlaced(context.Background(), order))
	assert.NoError(t, d.OperatorsOrderPlaced(context.Background(), order))
	assert.NoError(t, d.PaymentFailed(context.Background(), order, "declined"))
}

func TestMailFailureIsReturned(t *testing.T) {
	mail := &fakeMail{err: errors.New("535 auth failed")}
	d := NewDispatcher(Params{Mail: mail})
	err := d.PaymentConfirmed(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}
