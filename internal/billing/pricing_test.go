package billing

import (
	"testing"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, time.June, 15, 3, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testRates(t *testing.T) Rates {
	t.Helper()

	rates, err := RatesFromConfig(config.Billing{
		TrialDays:         5,
		FreeChannels:      5,
		BasePriceUSD:      "10",
		BasePriceRUB:      "549",
		BasePriceEUR:      "10",
		UnbrandedPriceUSD: "5",
		UnbrandedPriceRUB: "250",
		UnbrandedPriceEUR: "5",
		ChannelPriceUSD:   "1",
		ChannelPriceRUB:   "50",
		ChannelPriceEUR:   "1",
		DiskPriceUSD:      "0.5",
		DiskPriceRUB:      "25",
		DiskPriceEUR:      "0.5",
	})
	require.NoError(t, err)

	return rates
}

func readySelfHosted() *radio.SelfHosted {
	return &radio.SelfHosted{
		ID:        1,
		UserID:    1,
		IP:        "203.0.113.10",
		Status:    radio.Ready,
		Channels:  1,
		CreatedAt: asOf.AddDate(0, -2, 0),
	}
}

func TestSelfHostedMonthly(t *testing.T) {
	resolver := NewResolver(testRates(t))

	tests := []struct {
		name     string
		mutate   func(*radio.SelfHosted)
		currency user.Currency
		want     string
	}{
		{
			name:     "base price usd",
			mutate:   func(*radio.SelfHosted) {},
			currency: user.USD,
			want:     "10",
		},
		{
			name:     "base price rub",
			mutate:   func(*radio.SelfHosted) {},
			currency: user.RUB,
			want:     "549",
		},
		{
			name:     "blocked is free",
			mutate:   func(r *radio.SelfHosted) { r.Blocked = true },
			currency: user.USD,
			want:     "0",
		},
		{
			name: "trial window is free",
			mutate: func(r *radio.SelfHosted) {
				r.CreatedAt = asOf.Add(-48 * time.Hour)
			},
			currency: user.USD,
			want:     "0",
		},
		{
			name: "day after trial is billed",
			mutate: func(r *radio.SelfHosted) {
				r.CreatedAt = asOf.AddDate(0, 0, -6)
			},
			currency: user.USD,
			want:     "10",
		},
		{
			name:     "not ready is free",
			mutate:   func(r *radio.SelfHosted) { r.Status = radio.Pending },
			currency: user.USD,
			want:     "0",
		},
		{
			name:     "suspended is free",
			mutate:   func(r *radio.SelfHosted) { r.Status = radio.Suspended },
			currency: user.USD,
			want:     "0",
		},
		{
			name:     "custom price overrides computation",
			mutate:   func(r *radio.SelfHosted) { r.CustomPrice = decPtr("123.45") },
			currency: user.USD,
			want:     "123.45",
		},
		{
			// Pins the rule precedence: blocking wins over a custom price.
			name: "blocked with custom price is free",
			mutate: func(r *radio.SelfHosted) {
				r.Blocked = true
				r.CustomPrice = decPtr("123.45")
			},
			currency: user.USD,
			want:     "0",
		},
		{
			name:     "unbranded surcharge",
			mutate:   func(r *radio.SelfHosted) { r.Unbranded = true },
			currency: user.RUB,
			want:     "799",
		},
		{
			name:     "channels within allowance are free",
			mutate:   func(r *radio.SelfHosted) { r.Channels = 5 },
			currency: user.USD,
			want:     "10",
		},
		{
			name:     "extra channels surcharge",
			mutate:   func(r *radio.SelfHosted) { r.Channels = 8 },
			currency: user.USD,
			want:     "13",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := readySelfHosted()
			tt.mutate(sh)

			got, err := resolver.SelfHostedMonthly(sh, tt.currency, asOf)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)),
				"want %s, got %s", tt.want, got)
		})
	}
}

func TestSelfHostedMonthly_Errors(t *testing.T) {
	resolver := NewResolver(testRates(t))

	t.Run("unknown currency", func(t *testing.T) {
		_, err := resolver.SelfHostedMonthly(readySelfHosted(), "GBP", asOf)
		assert.Error(t, err)
	})

	t.Run("negative custom price", func(t *testing.T) {
		sh := readySelfHosted()
		sh.CustomPrice = decPtr("-1")
		_, err := resolver.SelfHostedMonthly(sh, user.USD, asOf)
		assert.Error(t, err)
	})
}

func TestHostedMonthly(t *testing.T) {
	resolver := NewResolver(testRates(t))

	hosted := func() *radio.Hosted {
		return &radio.Hosted{
			ID:     1,
			UserID: 1,
			Login:  "jazzfm",
			Status: radio.Ready,
			Services: []radio.Service{
				{Type: radio.ServiceStream, Price: dec("500")},
				{Type: radio.ServiceDisk, Price: dec("100"), DiskQuotaGB: 10},
			},
			CreatedAt: asOf.AddDate(0, -1, 0),
		}
	}

	t.Run("sums line items", func(t *testing.T) {
		got, err := resolver.HostedMonthly(hosted())
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("600")))
	})

	t.Run("no line items means free", func(t *testing.T) {
		h := hosted()
		h.Services = nil
		got, err := resolver.HostedMonthly(h)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("blocked is free", func(t *testing.T) {
		h := hosted()
		h.Blocked = true
		got, err := resolver.HostedMonthly(h)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("not ready is free", func(t *testing.T) {
		h := hosted()
		h.Status = radio.BeingCreated
		got, err := resolver.HostedMonthly(h)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("custom price overrides line items", func(t *testing.T) {
		h := hosted()
		h.CustomPrice = decPtr("42")
		got, err := resolver.HostedMonthly(h)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("42")))
	})
}

func TestDiskOverageMonthly(t *testing.T) {
	resolver := NewResolver(testRates(t))

	hosted := func(usageMB int64) *radio.Hosted {
		return &radio.Hosted{
			ID:          1,
			Login:       "jazzfm",
			Status:      radio.Ready,
			DiskUsageMB: usageMB,
			Services: []radio.Service{
				{Type: radio.ServiceDisk, Price: dec("100"), DiskQuotaGB: 10},
			},
		}
	}

	t.Run("below quota", func(t *testing.T) {
		price, overMB, err := resolver.DiskOverageMonthly(hosted(5*1024), user.RUB)
		require.NoError(t, err)
		assert.True(t, price.IsZero())
		assert.Zero(t, overMB)
	})

	t.Run("at quota", func(t *testing.T) {
		price, overMB, err := resolver.DiskOverageMonthly(hosted(10*1024), user.RUB)
		require.NoError(t, err)
		assert.True(t, price.IsZero())
		assert.Zero(t, overMB)
	})

	t.Run("ten gigabytes over", func(t *testing.T) {
		price, overMB, err := resolver.DiskOverageMonthly(hosted(20*1024), user.RUB)
		require.NoError(t, err)
		// 10 GB over at 25 RUB per GB.
		assert.True(t, price.Equal(dec("250")), "got %s", price)
		assert.EqualValues(t, 10*1024, overMB)
	})

	t.Run("latest disk line item wins", func(t *testing.T) {
		h := hosted(20 * 1024)
		h.Services = append(h.Services, radio.Service{
			Type:        radio.ServiceDisk,
			Price:       dec("200"),
			DiskQuotaGB: 30,
			CreatedAt:   time.Now(),
		})
		price, overMB, err := resolver.DiskOverageMonthly(h, user.RUB)
		require.NoError(t, err)
		assert.True(t, price.IsZero())
		assert.Zero(t, overMB)
	})
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 30, daysInMonth(time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 31, daysInMonth(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 29, daysInMonth(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, daysInMonth(time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)))
}
