package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
	"github.com/angelmondragon/florist-backend/pkg/enums"
	"github.com/angelmondragon/florist-backend/pkg/money"
	"github.com/angelmondragon/florist-backend/pkg/outbox/payloads"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateShopAlert         = "shop_order_alert"
	TemplateStatusUpdate      = "order_status_update"
)

var funcs = map[string]any{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"lineTotal": func(item models.OrderItem) string {
		return money.LineTotal(item.UnitPrice, item.Quantity).StringFixed(2)
	},
	"shortID": shortID,
}

const orderSummaryText = `{{define "summary"}}Order {{shortID .OrderID}}
{{range .Items}}- {{.Name}} x{{.Quantity}}: {{lineTotal .}}
{{end}}Delivery ({{.Delivery.Type}}{{if .Delivery.ZoneName}}, {{.Delivery.ZoneName}}{{end}}): {{money .Delivery.Price}}
Total: {{money .TotalPrice}}
Payment: {{.Payment.MethodName}}
{{if .ShippingAddress}}Deliver to: {{.ShippingAddress.Street}}, {{.ShippingAddress.PostalCode}} {{.ShippingAddress.City}}
{{end}}{{if .PickupStore}}Pick up at: {{.PickupStore.Name}}, {{.PickupStore.Address}}, {{.PickupStore.City}}
{{end}}{{end}}`

const orderSummaryHTML = `{{define "summary"}}<p><strong>Order {{shortID .OrderID}}</strong></p>
<table>{{range .Items}}<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td>{{lineTotal .}}</td></tr>{{end}}</table>
<p>Delivery ({{.Delivery.Type}}{{if .Delivery.ZoneName}}, {{.Delivery.ZoneName}}{{end}}): {{money .Delivery.Price}}<br>
Total: <strong>{{money .TotalPrice}}</strong><br>
Payment: {{.Payment.MethodName}}</p>
{{if .ShippingAddress}}<p>Deliver to: {{.ShippingAddress.Street}}, {{.ShippingAddress.PostalCode}} {{.ShippingAddress.City}}</p>{{end}}
{{if .PickupStore}}<p>Pick up at: {{.PickupStore.Name}}, {{.PickupStore.Address}}, {{.PickupStore.City}}</p>{{end}}{{end}}`

var (
	confirmationText = texttemplate.Must(texttemplate.New("confirmation").Funcs(funcs).Parse(orderSummaryText + `Hi {{.CustomerInfo.FirstName}},

thank you for your order. We will let you know as soon as it moves along.

{{template "summary" .}}`))
	confirmationHTML = template.Must(template.New("confirmation").Funcs(funcs).Parse(orderSummaryHTML + `<p>Hi {{.CustomerInfo.FirstName}},</p>
<p>thank you for your order. We will let you know as soon as it moves along.</p>
{{template "summary" .}}`))

	shopAlertText = texttemplate.Must(texttemplate.New("shop").Funcs(funcs).Parse(orderSummaryText + `New order from {{.CustomerInfo.FirstName}} {{.CustomerInfo.LastName}} ({{.CustomerInfo.Email}}, {{.CustomerInfo.Phone}})
{{if .CustomerInfo.Note}}Note: {{.CustomerInfo.Note}}
{{end}}
{{template "summary" .}}`))
	shopAlertHTML = template.Must(template.New("shop").Funcs(funcs).Parse(orderSummaryHTML + `<p>New order from {{.CustomerInfo.FirstName}} {{.CustomerInfo.LastName}} ({{.CustomerInfo.Email}}, {{.CustomerInfo.Phone}})</p>
{{if .CustomerInfo.Note}}<p>Note: {{.CustomerInfo.Note}}</p>{{end}}
{{template "summary" .}}`))

	statusText = texttemplate.Must(texttemplate.New("status").Funcs(funcs).Parse(`Hi {{.Name}},

{{.Line}}

Order {{shortID .Event.OrderID}}
`))
	statusHTML = template.Must(template.New("status").Funcs(funcs).Parse(`<p>Hi {{.Name}},</p>
<p>{{.Line}}</p>
<p>Order {{shortID .Event.OrderID}}</p>`))
)

// RenderOrderConfirmation builds the customer receipt for a new order.
func RenderOrderConfirmation(evt payloads.OrderCreatedEvent) (Message, error) {
	msg := Message{
		Template: TemplateOrderConfirmation,
		ToEmail:  evt.CustomerInfo.Email,
		ToName:   strings.TrimSpace(evt.CustomerInfo.FirstName + " " + evt.CustomerInfo.LastName),
		Subject:  fmt.Sprintf("Your order %s", shortID(evt.OrderID)),
	}
	return render(msg, confirmationText, confirmationHTML, evt)
}

// RenderShopAlert builds the internal notification sent to the shop inbox.
func RenderShopAlert(evt payloads.OrderCreatedEvent, shopEmail string) (Message, error) {
	msg := Message{
		Template: TemplateShopAlert,
		ToEmail:  shopEmail,
		Subject:  fmt.Sprintf("New %s order %s (%s)", evt.Delivery.Type, shortID(evt.OrderID), evt.TotalPrice.StringFixed(2)),
	}
	return render(msg, shopAlertText, shopAlertHTML, evt)
}

// RenderStatusUpdate builds the customer email for a status change. It reports
// false for transitions customers are not told about.
func RenderStatusUpdate(evt payloads.OrderStatusChangedEvent) (Message, bool, error) {
	line, ok := statusLine(evt)
	if !ok {
		return Message{}, false, nil
	}
	data := struct {
		Name  string
		Line  string
		Event payloads.OrderStatusChangedEvent
	}{Name: evt.CustomerName, Line: line, Event: evt}
	msg := Message{
		Template: TemplateStatusUpdate,
		ToEmail:  evt.CustomerEmail,
		ToName:   evt.CustomerName,
		Subject:  fmt.Sprintf("Order %s update", shortID(evt.OrderID)),
	}
	msg, err := render(msg, statusText, statusHTML, data)
	return msg, err == nil, err
}

func statusLine(evt payloads.OrderStatusChangedEvent) (string, bool) {
	if evt.Field == payloads.StatusFieldPayment {
		switch enums.PaymentStatus(evt.To) {
		case enums.PaymentStatusPaid:
			return "we received your payment.", true
		case enums.PaymentStatusRefunded:
			return "your payment has been refunded.", true
		}
		return "", false
	}
	switch enums.OrderStatus(evt.To) {
	case enums.OrderStatusProcessing:
		return "we are preparing your flowers.", true
	case enums.OrderStatusShipped:
		return "your order is on its way.", true
	case enums.OrderStatusReady:
		return "your order is ready for pickup.", true
	case enums.OrderStatusDelivered:
		if evt.Fulfillment == enums.FulfillmentPickup {
			return "your order has been picked up. Enjoy!", true
		}
		return "your order has been delivered. Enjoy!", true
	case enums.OrderStatusCancelled:
		return "your order has been cancelled. Contact us if this is unexpected.", true
	}
	return "", false
}

func render(msg Message, text *texttemplate.Template, html *template.Template, data any) (Message, error) {
	var plain, rich bytes.Buffer
	if err := text.Execute(&plain, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", msg.Template, err)
	}
	if err := html.Execute(&rich, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", msg.Template, err)
	}
	msg.PlainText = plain.String()
	msg.HTML = rich.String()
	return msg, nil
}

func shortID(id fmt.Stringer) string {
	s := id.String()
	if len(s) > 8 {
		return strings.ToUpper(s[:8])
	}
	return strings.ToUpper(s)
}
