package notifications

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type emailView struct {
	Store    string
	OrderID  string
	Name     string
	Items    []models.OrderItem
	Subtotal types.Money
	Discount types.Money
	Total    types.Money
	Method   string
	Shipping types.ShippingAddress
	Code     string
	Minutes  int
}

func (d *Dispatcher) view(order *models.Order) emailView {
	name := order.Contact.Name
	if name == "" {
		name = order.Shipping.Name
	}
	return emailView{
		Store:    d.storeName,
		OrderID:  shortID(order),
		Name:     name,
		Items:    order.Items,
		Subtotal: order.TotalCents,
		Discount: order.DiscountCents,
		Total:    order.FinalTotalCents,
		Method:   string(order.PaymentMethod),
		Shipping: order.Shipping,
	}
}

const layout = `{{define "items"}}<table>{{range .Items}}<tr><td>{{.Quantity}} × {{.Name}}{{if .Color}} ({{.Color}}){{end}}</td><td>€{{.UnitPrice}}</td></tr>{{end}}</table>
<p>Subtotal: €{{.Subtotal}}{{if .Discount}}<br>Discount: -€{{.Discount}}{{end}}<br><b>Total: €{{.Total}}</b></p>{{end}}`

var (
	orderPlacedEmail = template.Must(template.New("placed").Parse(layout + `
<p>Hi {{.Name}},</p><p>Thanks for shopping with {{.Store}}. Your order <b>{{.OrderID}}</b> is confirmed.</p>
{{template "items" .}}<p>Payment: {{.Method}}</p>`))

	orderAlertEmail = template.Must(template.New("alert").Parse(layout + `
<p>New order <b>{{.OrderID}}</b> ({{.Method}}) from {{.Name}}.</p>
{{template "items" .}}<p>{{.Shipping.Address}}, {{.Shipping.City}} {{.Shipping.Zip}} {{.Shipping.Country}}</p>`))

	paymentConfirmedEmail = template.Must(template.New("paid").Parse(`<p>Hi {{.Name}},</p><p>We received your payment of €{{.Total}} for order <b>{{.OrderID}}</b>.</p>`))

	cancelOTPEmail = template.Must(template.New("otp").Parse(`<p>Hi {{.Name}},</p><p>Your code to cancel order <b>{{.OrderID}}</b> is:</p><h2>{{.Code}}</h2><p>It expires in {{.Minutes}} minutes. If you did not ask to cancel, ignore this email.</p>`))

	orderCancelledEmail = template.Must(template.New("cancelled").Parse(`<p>Hi {{.Name}},</p><p>Your order <b>{{.OrderID}}</b> has been cancelled.</p>`))
)

func renderEmail(tmpl *template.Template, view emailView) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
