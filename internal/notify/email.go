package notify

import (
	"context"
	"fmt"
	"math"
	"net/smtp"
	"strings"
	"time"
)

// EmailChannel sends a plain-text alert over SMTP. smtp.SendMail negotiates
// STARTTLS on its own when the server offers it.
type EmailChannel struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func (c EmailChannel) Name() string {
	return "email"
}

func (c EmailChannel) Send(ctx context.Context, n PriceChangeNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if c.Username != "" {
		auth = smtp.PlainAuth("", c.Username, c.Password, c.Host)
	}
	return smtp.SendMail(fmt.Sprintf("%s:%d", c.Host, c.Port), auth, c.From, c.To, c.message(n))
}

func (c EmailChannel) message(n PriceChangeNotification) []byte {
	verb := "increased"
	if n.PriceChange.ChangeType == "decrease" {
		verb = "dropped"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.To, ", "))
	fmt.Fprintf(&b, "Subject: Price Alert: %s\r\n", n.Product.Name)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "The price of %s has %s by %.1f%%.\r\n\r\n", n.Product.Name, verb, math.Abs(n.PriceChange.ChangePercentage))
	fmt.Fprintf(&b, "Old price: %.2f\r\n", n.PriceChange.OldPrice)
	fmt.Fprintf(&b, "New price: %.2f\r\n\r\n", n.PriceChange.NewPrice)
	fmt.Fprintf(&b, "%s\r\n\r\n", n.Product.URL)
	fmt.Fprintf(&b, "Checked at %s\r\n", n.Timestamp.Format(time.RFC1123))
	return []byte(b.String())
}
