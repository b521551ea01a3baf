package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"beatstore/internal/client"
	"beatstore/internal/model"
)

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to string, order *model.Order) error
}

type mailerImpl struct {
	emailClient client.EmailClient
}

func NewMailer(emailClient client.EmailClient) Mailer {
	return &mailerImpl{emailClient: emailClient}
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(minor)/100, strings.ToUpper(currency))
}

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").
	Funcs(template.FuncMap{"formatAmount": formatAmount}).
	Parse(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<style>
		body { font-family: Arial, sans-serif; color: #222; }
		table { border-collapse: collapse; width: 100%; }
		th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
		.total { font-weight: bold; }
	</style>
</head>
<body>
	<h2>Thanks for your order</h2>
	<p>Order <strong>{{.OrderNumber}}</strong> is confirmed.</p>

	<table>
		<tr><th>License</th><th>Qty</th><th>Price</th></tr>
		{{range .Items}}
		<tr>
			<td>{{.LicenseType}}</td>
			<td>{{.Quantity}}</td>
			<td>{{formatAmount .TotalPrice $.Currency}}</td>
		</tr>
		{{end}}
		<tr class="total">
			<td colspan="2">Total</td>
			<td>{{formatAmount .Total .Currency}}</td>
		</tr>
	</table>

	<p>Your downloads are available from your account page.</p>
</body>
</html>
`))

func (m *mailerImpl) SendOrderConfirmation(ctx context.Context, to string, order *model.Order) error {
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, order); err != nil {
		return fmt.Errorf("render order confirmation: %w", err)
	}

	subject := fmt.Sprintf("Order confirmation %s", order.OrderNumber)
	if err := m.emailClient.Send(ctx, to, subject, buf.String()); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}

	return nil
}
