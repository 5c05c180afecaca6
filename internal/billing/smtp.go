package billing

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
)

// SMTPSender delivers messages over plain SMTP.
type SMTPSender struct {
	addr     string
	username string
	password string
	host     string
}

func NewSMTPSender(cfg config.SMTPRoute) *SMTPSender {
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		username: cfg.Username,
		password: cfg.Password,
		host:     cfg.Host,
	}
}

var _ Sender = (*SMTPSender)(nil)

func (s *SMTPSender) Send(_ context.Context, from string, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(s.addr, auth, from, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail to %v: %w", msg.To, err)
	}

	return nil
}

// RoutesFromConfig maps notification languages to SMTP routes: the
// primary route serves Russian-speaking users, the secondary one the
// international brand. With no secondary host configured, everything
// goes through the primary route.
func RoutesFromConfig(cfg config.SMTP) map[user.Language]Route {
	routes := map[user.Language]Route{
		user.RU: {Sender: NewSMTPSender(cfg.Primary), From: cfg.Primary.From},
	}

	if cfg.Secondary.Host != "" {
		routes[user.EN] = Route{Sender: NewSMTPSender(cfg.Secondary), From: cfg.Secondary.From}
	} else {
		routes[user.EN] = routes[user.RU]
	}

	return routes
}
