package billing

import (
	"context"
	"fmt"

	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// Message is a plain-text notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a message from the given address. Implementations
// must not be relied on for ledger correctness: delivery is
// fire-and-forget.
type Sender interface {
	Send(ctx context.Context, from string, msg Message) error
}

// Route binds a sender to a from-address. Each language is mailed
// through its brand's route.
type Route struct {
	Sender Sender
	From   string
}

type notice struct {
	subject string
	body    string
}

// Balance notices per language. Subjects and bodies take the rounded
// balance and the currency code.
var (
	suspendedNotices = map[user.Language]notice{
		user.EN: {
			subject: "Account balance is negative, service has been suspended: %s %s",
			body:    "Your account balance is %s %s. All services have been suspended. Please top up your balance to resume them.",
		},
		user.RU: {
			subject: "Деньги закончились, услуги приостановлены: %s %s",
			body:    "Баланс вашего аккаунта составляет %s %s. Услуги приостановлены. Пополните баланс, чтобы возобновить их работу.",
		},
	}

	lowBalanceNotices = map[user.Language]notice{
		user.EN: {
			subject: "Low balance notification: %s %s",
			body:    "Your account balance is %s %s. Please top up your balance to avoid service suspension.",
		},
		user.RU: {
			subject: "На балансе осталось %s %s",
			body:    "Баланс вашего аккаунта составляет %s %s. Пополните баланс, чтобы избежать приостановки услуг.",
		},
	}
)

// Notifier inspects an account's balance after a day's charges are
// posted and dispatches the appropriate notice. Send failures are
// logged and swallowed: the ledger must never depend on mail.
type Notifier struct {
	routes         map[user.Language]Route
	adminEmail     string
	lowBalanceDays int64
	logger         logger.Logger
}

func NewNotifier(routes map[user.Language]Route, adminEmail string, lowBalanceDays int, logger logger.Logger) (*Notifier, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("no notification routes configured")
	}
	if lowBalanceDays <= 0 {
		return nil, fmt.Errorf("low balance threshold must be positive, got %d", lowBalanceDays)
	}
	return &Notifier{
		routes:         routes,
		adminEmail:     adminEmail,
		lowBalanceDays: int64(lowBalanceDays),
		logger:         logger,
	}, nil
}

// Notify evaluates the user's balance against today's total daily
// charge:
//
//   - balance <= 0: service suspended notice;
//   - balance below lowBalanceDays daily charges: low balance
//     reminder, copied to the admin mailbox for non-Russian users;
//   - otherwise nothing.
func (n *Notifier) Notify(ctx context.Context, u *user.User, totalDaily decimal.Decimal) {
	if totalDaily.Sign() <= 0 {
		return
	}

	balance := u.Balance.StringFixed(2)

	switch {
	case u.Balance.Sign() <= 0:
		t := suspendedNotices[n.language(u)]
		n.send(ctx, u.Language, Message{
			To:      []string{u.Email},
			Subject: fmt.Sprintf(t.subject, balance, u.Currency),
			Body:    fmt.Sprintf(t.body, balance, u.Currency),
		})

	case u.Balance.LessThan(totalDaily.Mul(decimal.NewFromInt(n.lowBalanceDays))):
		t := lowBalanceNotices[n.language(u)]
		msg := Message{
			To:      []string{u.Email},
			Subject: fmt.Sprintf(t.subject, balance, u.Currency),
			Body:    fmt.Sprintf(t.body, balance, u.Currency),
		}
		n.send(ctx, u.Language, msg)

		if u.Language != user.RU && n.adminEmail != "" {
			n.send(ctx, user.RU, Message{
				To:      []string{n.adminEmail},
				Subject: fmt.Sprintf("Low balance: %s: %s %s", u.Email, balance, u.Currency),
				Body:    msg.Body,
			})
		}
	}
}

// SendSummary mails the per-currency job totals to the admin mailbox.
func (n *Notifier) SendSummary(ctx context.Context, s *Summary) {
	if n.adminEmail == "" {
		return
	}

	body := ""
	for _, cur := range []user.Currency{user.USD, user.RUB, user.EUR} {
		body += fmt.Sprintf("%s paying clients: %d, daily total: %s\n",
			cur, s.PayingClients[cur], s.Totals[cur].StringFixed(2))
	}
	body += fmt.Sprintf("Charges posted: %d\n", s.ChargesPosted)

	n.send(ctx, user.RU, Message{
		To:      []string{n.adminEmail},
		Subject: fmt.Sprintf("Daily income: %s RUB, %s USD, %s EUR",
			s.Totals[user.RUB].StringFixed(2),
			s.Totals[user.USD].StringFixed(2),
			s.Totals[user.EUR].StringFixed(2)),
		Body: body,
	})
}

func (n *Notifier) language(u *user.User) user.Language {
	if _, ok := suspendedNotices[u.Language]; ok {
		return u.Language
	}
	return user.EN
}

func (n *Notifier) send(ctx context.Context, lang user.Language, msg Message) {
	route, ok := n.routes[lang]
	if !ok {
		route = n.routes[user.EN]
	}
	if route.Sender == nil {
		n.logger.Errorf("no notification route for language %q", lang)
		return
	}

	if err := route.Sender.Send(ctx, route.From, msg); err != nil {
		n.logger.With(ctx, "to", msg.To, "subject", msg.Subject).
			Errorf("send notification: %s", err)
	}
}
