package billing

import (
	"context"
	"testing"

	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNotifier(t *testing.T, adminEmail string) (*Notifier, *recordingSender) {
	t.Helper()

	sender := new(recordingSender)
	routes := map[user.Language]Route{
		user.EN: {Sender: sender, From: "billing@streaming.example"},
		user.RU: {Sender: sender, From: "billing@radio.example"},
	}

	notifier, err := NewNotifier(routes, adminEmail, 5, logger.NewWithZap(zap.L()))
	require.NoError(t, err)

	return notifier, sender
}

func enUser(balance string) *user.User {
	return &user.User{
		ID:       1,
		Email:    "dj@example.com",
		Language: user.EN,
		Currency: user.USD,
		Balance:  dec(balance),
	}
}

func TestNotify_NegativeBalanceSuspends(t *testing.T) {
	notifier, sender := newTestNotifier(t, "admin@example.com")

	notifier.Notify(context.Background(), enUser("-3.50"), dec("2"))

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"dj@example.com"}, msgs[0].To)
	assert.Contains(t, msgs[0].Subject, "suspended")
	assert.Contains(t, msgs[0].Subject, "-3.50 USD")
}

func TestNotify_ZeroBalanceSuspends(t *testing.T) {
	notifier, sender := newTestNotifier(t, "")

	notifier.Notify(context.Background(), enUser("0"), dec("2"))

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "suspended")
}

func TestNotify_LowBalanceCopiesAdminForEnglishLocale(t *testing.T) {
	notifier, sender := newTestNotifier(t, "admin@example.com")

	// 9 is below 5 daily charges of 2.
	notifier.Notify(context.Background(), enUser("9"), dec("2"))

	msgs := sender.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"dj@example.com"}, msgs[0].To)
	assert.Contains(t, msgs[0].Subject, "Low balance")
	assert.Equal(t, []string{"admin@example.com"}, msgs[1].To)
}

func TestNotify_LowBalanceRussianLocaleSkipsAdminCopy(t *testing.T) {
	notifier, sender := newTestNotifier(t, "admin@example.com")

	u := enUser("9")
	u.Language = user.RU
	u.Currency = user.RUB
	notifier.Notify(context.Background(), u, dec("2"))

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "9.00 RUB")
}

func TestNotify_HealthyBalanceIsSilent(t *testing.T) {
	notifier, sender := newTestNotifier(t, "admin@example.com")

	// 10 covers exactly 5 daily charges of 2: no reminder.
	notifier.Notify(context.Background(), enUser("10"), dec("2"))

	assert.Empty(t, sender.sent())
}

func TestNotify_NoChargesTodayIsSilent(t *testing.T) {
	notifier, sender := newTestNotifier(t, "admin@example.com")

	notifier.Notify(context.Background(), enUser("-5"), dec("0"))

	assert.Empty(t, sender.sent())
}

func TestNotify_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	notifier, sender := newTestNotifier(t, "")

	u := enUser("0")
	u.Language = "de"
	notifier.Notify(context.Background(), u, dec("2"))

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "suspended")
}

func TestSendSummary(t *testing.T) {
	notifier, sender := newTestNotifier(t, "admin@example.com")

	notifier.SendSummary(context.Background(), &Summary{
		PayingClients: map[user.Currency]int{user.RUB: 2, user.USD: 1},
		Totals: map[user.Currency]decimal.Decimal{
			user.RUB: dec("40"),
			user.USD: dec("0.67"),
		},
		ChargesPosted: 3,
	})

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"admin@example.com"}, msgs[0].To)
	assert.Contains(t, msgs[0].Subject, "40.00 RUB")
	assert.Contains(t, msgs[0].Body, "RUB paying clients: 2")
}
