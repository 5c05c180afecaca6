package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/models/charge"
	"github.com/alexey-v-paramonov/sc-api/internal/models/errs"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	users      []*user.User
	selfHosted map[int][]*radio.SelfHosted
	hosted     map[int][]*radio.Hosted
	charges    []*charge.Charge
	mu         sync.Mutex
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) GetPayableUsers(_ context.Context) ([]*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payable := make([]*user.User, 0)
	for _, u := range m.users {
		if u.Balance.Sign() > 0 && !u.IsStaff {
			payable = append(payable, u)
		}
	}
	return payable, nil
}

func (m *mockRepository) GetSelfHostedRadios(_ context.Context, userID int) ([]*radio.SelfHosted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selfHosted[userID], nil
}

func (m *mockRepository) GetHostedRadios(_ context.Context, userID int) ([]*radio.Hosted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	radios := make([]*radio.Hosted, 0)
	for _, h := range m.hosted[userID] {
		if !h.IsDemo {
			radios = append(radios, h)
		}
	}
	return radios, nil
}

func (m *mockRepository) ChargeExists(_ context.Context, userID int, service charge.ServiceType, day time.Time, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chargeExistsLocked(userID, service, day, description), nil
}

func (m *mockRepository) chargeExistsLocked(userID int, service charge.ServiceType, day time.Time, description string) bool {
	y, mo, d := day.Date()
	for _, c := range m.charges {
		cy, cmo, cd := c.CreatedAt.Date()
		if c.UserID == userID && c.Service == service &&
			c.Description == description &&
			cy == y && cmo == mo && cd == d {
			return true
		}
	}
	return false
}

func (m *mockRepository) CreateCharge(_ context.Context, c *charge.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chargeExistsLocked(c.UserID, c.Service, c.CreatedAt, c.Description) {
		return errs.ErrDataConflict
	}
	c.ID = int64(len(m.charges) + 1)
	m.charges = append(m.charges, c)
	return nil
}

func (m *mockRepository) DebitBalance(_ context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.Balance = u.Balance.Sub(amount)
			return u.Balance, nil
		}
	}
	return decimal.Zero, errs.ErrNotFound
}

// passthroughManager runs the transactional closure without a real
// transaction.
type passthroughManager struct{}

func (passthroughManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughManager) DoWithSettings(ctx context.Context, _ trm.Settings, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// recordingSender collects sent messages instead of delivering them.
type recordingSender struct {
	messages []Message
	mu       sync.Mutex
}

func (s *recordingSender) Send(_ context.Context, _ string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func newTestJob(t *testing.T, repo *mockRepository) (*Job, *recordingSender) {
	t.Helper()

	sender := new(recordingSender)
	routes := map[user.Language]Route{
		user.EN: {Sender: sender, From: "billing@streaming.example"},
		user.RU: {Sender: sender, From: "billing@radio.example"},
	}

	notifier, err := NewNotifier(routes, "", 5, logger.NewWithZap(zap.L()))
	require.NoError(t, err)

	job, err := NewJob(
		repo,
		passthroughManager{},
		NewResolver(testRates(t)),
		notifier,
		nil,
		logger.NewWithZap(zap.L()),
	)
	require.NoError(t, err)

	return job, sender
}

func rubUser(balance string) *user.User {
	return &user.User{
		ID:       1,
		Email:    "owner@example.com",
		Language: user.RU,
		Currency: user.RUB,
		Balance:  dec(balance),
	}
}

func readyHosted(monthly string) *radio.Hosted {
	return &radio.Hosted{
		ID:     1,
		UserID: 1,
		Login:  "jazzfm",
		Status: radio.Ready,
		Services: []radio.Service{
			{Type: radio.ServiceStream, Price: dec(monthly)},
		},
		CreatedAt: asOf.AddDate(0, -1, 0),
	}
}

func TestRun_HostedRadioAccrual(t *testing.T) {
	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {readyHosted("600")}},
	}
	job, sender := newTestJob(t, repo)

	summary, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	// 600 RUB over a 30 day month is 20 RUB per day.
	require.Len(t, repo.charges, 1)
	c := repo.charges[0]
	assert.Equal(t, charge.HostedStream, c.Service)
	assert.Equal(t, "jazzfm", c.Description)
	assert.Equal(t, user.RUB, c.Currency)
	assert.True(t, c.Price.Equal(dec("20")), "got %s", c.Price)

	assert.True(t, repo.users[0].Balance.Equal(dec("980")),
		"got %s", repo.users[0].Balance)

	assert.Equal(t, 1, summary.ChargesPosted)
	assert.Equal(t, 1, summary.PayingClients[user.RUB])
	assert.True(t, summary.Totals[user.RUB].Equal(dec("20")))

	// 980 covers 49 days of charges, far above the threshold.
	assert.Empty(t, sender.sent())
}

func TestRun_IsIdempotentWithinDay(t *testing.T) {
	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {readyHosted("600")}},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)
	_, err = job.Run(context.Background(), asOf.Add(4*time.Hour))
	require.NoError(t, err)

	assert.Len(t, repo.charges, 1)
	assert.True(t, repo.users[0].Balance.Equal(dec("980")),
		"got %s", repo.users[0].Balance)
}

func TestRun_NextDayChargesAgain(t *testing.T) {
	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {readyHosted("600")}},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)
	_, err = job.Run(context.Background(), asOf.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Len(t, repo.charges, 2)
	assert.True(t, repo.users[0].Balance.Equal(dec("960")),
		"got %s", repo.users[0].Balance)
}

func TestRun_SuspensionNotice(t *testing.T) {
	repo := &mockRepository{
		users:  []*user.User{rubUser("15")},
		hosted: map[int][]*radio.Hosted{1: {readyHosted("600")}},
	}
	job, sender := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	// 15 - 20 goes negative and the service is suspended.
	assert.True(t, repo.users[0].Balance.Equal(dec("-5")),
		"got %s", repo.users[0].Balance)

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"owner@example.com"}, msgs[0].To)
	assert.Contains(t, msgs[0].Subject, "приостановлены")
	assert.Contains(t, msgs[0].Subject, "-5.00 RUB")
}

func TestRun_LowBalanceNotice(t *testing.T) {
	repo := &mockRepository{
		users:  []*user.User{rubUser("90")},
		hosted: map[int][]*radio.Hosted{1: {readyHosted("600")}},
	}
	job, sender := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	// New balance 70 is below 5 daily charges (100).
	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "70.00 RUB")
}

func TestRun_ZeroPriceResourcesAreUntouched(t *testing.T) {
	blocked := readyHosted("600")
	blocked.Blocked = true

	pending := readyHosted("600")
	pending.ID = 2
	pending.Login = "newsfm"
	pending.Status = radio.Pending

	inTrial := &radio.SelfHosted{
		ID:        1,
		UserID:    1,
		IP:        "203.0.113.10",
		Status:    radio.Ready,
		Channels:  1,
		CreatedAt: asOf.Add(-24 * time.Hour),
	}

	repo := &mockRepository{
		users:      []*user.User{rubUser("1000")},
		selfHosted: map[int][]*radio.SelfHosted{1: {inTrial}},
		hosted:     map[int][]*radio.Hosted{1: {blocked, pending}},
	}
	job, sender := newTestJob(t, repo)

	summary, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Empty(t, repo.charges)
	assert.True(t, repo.users[0].Balance.Equal(dec("1000")))
	assert.Zero(t, summary.ChargesPosted)
	assert.Empty(t, sender.sent())
}

func TestRun_CustomPriceProration(t *testing.T) {
	h := readyHosted("600")
	h.CustomPrice = decPtr("300")

	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {h}},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, repo.charges, 1)
	assert.True(t, repo.charges[0].Price.Equal(dec("10")),
		"got %s", repo.charges[0].Price)
}

func TestRun_DiskOverage(t *testing.T) {
	h := readyHosted("600")
	h.Services = append(h.Services, radio.Service{
		Type:        radio.ServiceDisk,
		Price:       dec("100"),
		DiskQuotaGB: 10,
	})
	h.DiskUsageMB = 20 * 1024 // 10 GB over quota

	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {h}},
	}
	job, _ := newTestJob(t, repo)

	summary, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, repo.charges, 2)
	assert.Equal(t, charge.HostedStream, repo.charges[0].Service)
	assert.Equal(t, charge.HostedDisk, repo.charges[1].Service)
	assert.Equal(t, "jazzfm disk overage", repo.charges[1].Description)

	// 10 GB at 25 RUB per GB is 250 RUB per month, 8.3333 per day.
	assert.True(t, repo.charges[1].Price.Equal(dec("8.3333")),
		"got %s", repo.charges[1].Price)

	// Stream line items now sum to 700: (600+100)/30 + 250/30.
	want := dec("700").DivRound(dec("30"), 4).Add(dec("8.3333"))
	assert.True(t, summary.Totals[user.RUB].Equal(want),
		"want %s, got %s", want, summary.Totals[user.RUB])
}

func TestRun_DiskUsageBelowQuota(t *testing.T) {
	h := readyHosted("600")
	h.Services = append(h.Services, radio.Service{
		Type:        radio.ServiceDisk,
		Price:       dec("100"),
		DiskQuotaGB: 10,
	})
	h.DiskUsageMB = 9 * 1024

	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {h}},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, repo.charges, 1)
	assert.Equal(t, charge.HostedStream, repo.charges[0].Service)
}

func TestRun_DemoRadiosAreExcluded(t *testing.T) {
	demo := readyHosted("600")
	demo.IsDemo = true

	repo := &mockRepository{
		users:  []*user.User{rubUser("1000")},
		hosted: map[int][]*radio.Hosted{1: {demo}},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Empty(t, repo.charges)
}

func TestRun_SelfHostedDescription(t *testing.T) {
	sh := &radio.SelfHosted{
		ID:        1,
		UserID:    1,
		IP:        "203.0.113.10",
		Domain:    "radio.example.com",
		Status:    radio.Ready,
		Channels:  1,
		CreatedAt: asOf.AddDate(0, -2, 0),
	}

	repo := &mockRepository{
		users:      []*user.User{rubUser("1000")},
		selfHosted: map[int][]*radio.SelfHosted{1: {sh}},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	require.Len(t, repo.charges, 1)
	assert.Equal(t, charge.SelfHosted, repo.charges[0].Service)
	assert.Equal(t, "203.0.113.10 (radio.example.com)", repo.charges[0].Description)
	assert.True(t, repo.charges[0].Price.Equal(dec("549").DivRound(dec("30"), 4)))
}

func TestRun_StaffAndEmptyBalancesAreSkipped(t *testing.T) {
	staff := rubUser("1000")
	staff.ID = 2
	staff.IsStaff = true

	broke := rubUser("0")
	broke.ID = 3

	repo := &mockRepository{
		users: []*user.User{staff, broke},
		hosted: map[int][]*radio.Hosted{
			2: {readyHosted("600")},
			3: {readyHosted("600")},
		},
	}
	job, _ := newTestJob(t, repo)

	_, err := job.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Empty(t, repo.charges)
}
