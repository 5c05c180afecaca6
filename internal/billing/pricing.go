package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/internal/models/radio"
	"github.com/alexey-v-paramonov/sc-api/internal/models/user"
	"github.com/shopspring/decimal"
)

// mbPerGB converts disk readings (stored in megabytes) to billable
// gigabytes.
var mbPerGB = decimal.NewFromInt(1024)

var (
	errUnknownCurrency     = errors.New("unknown currency")
	errNegativeCustomPrice = errors.New("negative custom price")
)

// Rates holds per-currency monthly prices for every billable
// component. Parsed once from configuration.
type Rates struct {
	SelfHostedBase map[user.Currency]decimal.Decimal
	Unbranded      map[user.Currency]decimal.Decimal
	Channel        map[user.Currency]decimal.Decimal
	DiskPerGB      map[user.Currency]decimal.Decimal
	FreeChannels   int
	TrialDays      int
}

// RatesFromConfig parses the decimal strings of the billing config.
func RatesFromConfig(cfg config.Billing) (Rates, error) {
	parse := func(usd, rub, eur string) (map[user.Currency]decimal.Decimal, error) {
		m := make(map[user.Currency]decimal.Decimal, 3)
		for cur, s := range map[user.Currency]string{user.USD: usd, user.RUB: rub, user.EUR: eur} {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("price for %s: %w", cur, err)
			}
			m[cur] = d
		}
		return m, nil
	}

	base, err := parse(cfg.BasePriceUSD, cfg.BasePriceRUB, cfg.BasePriceEUR)
	if err != nil {
		return Rates{}, fmt.Errorf("base price: %w", err)
	}
	unbranded, err := parse(cfg.UnbrandedPriceUSD, cfg.UnbrandedPriceRUB, cfg.UnbrandedPriceEUR)
	if err != nil {
		return Rates{}, fmt.Errorf("unbranded price: %w", err)
	}
	channel, err := parse(cfg.ChannelPriceUSD, cfg.ChannelPriceRUB, cfg.ChannelPriceEUR)
	if err != nil {
		return Rates{}, fmt.Errorf("channel price: %w", err)
	}
	disk, err := parse(cfg.DiskPriceUSD, cfg.DiskPriceRUB, cfg.DiskPriceEUR)
	if err != nil {
		return Rates{}, fmt.Errorf("disk price: %w", err)
	}

	return Rates{
		SelfHostedBase: base,
		Unbranded:      unbranded,
		Channel:        channel,
		DiskPerGB:      disk,
		FreeChannels:   cfg.FreeChannels,
		TrialDays:      cfg.TrialDays,
	}, nil
}

// Resolver computes monthly prices for billable resources.
//
// Rule order, first match wins:
//
//  1. blocked resource           -> 0
//  2. within trial window        -> 0 (self-hosted only)
//  3. status is not Ready        -> 0
//  4. custom price set           -> custom price verbatim
//  5. computed price
//
// The zero-price rules deliberately win over a custom price: blocking
// a resource stops its charges even when a pricing override is set.
type Resolver struct {
	rates Rates
}

func NewResolver(rates Rates) *Resolver {
	return &Resolver{rates: rates}
}

// SelfHostedMonthly returns the monthly price of a self-hosted radio
// server: currency base price, plus the unbranded surcharge, plus a
// per-channel surcharge for every channel above the free allowance.
func (r *Resolver) SelfHostedMonthly(sh *radio.SelfHosted, cur user.Currency, asOf time.Time) (decimal.Decimal, error) {
	if sh.Blocked {
		return decimal.Zero, nil
	}
	if r.inTrial(sh.CreatedAt, asOf) {
		return decimal.Zero, nil
	}
	if sh.Status != radio.Ready {
		return decimal.Zero, nil
	}
	if sh.CustomPrice != nil {
		if sh.CustomPrice.IsNegative() {
			return decimal.Zero, errNegativeCustomPrice
		}
		return *sh.CustomPrice, nil
	}

	price, ok := r.rates.SelfHostedBase[cur]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", errUnknownCurrency, cur)
	}

	if sh.Unbranded {
		price = price.Add(r.rates.Unbranded[cur])
	}

	if extra := sh.Channels - r.rates.FreeChannels; extra > 0 {
		price = price.Add(r.rates.Channel[cur].Mul(decimal.NewFromInt(int64(extra))))
	}

	return price, nil
}

// HostedMonthly returns the monthly price of a hosted radio: the sum
// of its service line items, priced at provisioning time. No trial
// here; hosted trials are represented by demo instances, which are
// excluded from billing altogether.
func (r *Resolver) HostedMonthly(h *radio.Hosted) (decimal.Decimal, error) {
	if h.Blocked {
		return decimal.Zero, nil
	}
	if h.Status != radio.Ready {
		return decimal.Zero, nil
	}
	if h.CustomPrice != nil {
		if h.CustomPrice.IsNegative() {
			return decimal.Zero, errNegativeCustomPrice
		}
		return *h.CustomPrice, nil
	}

	price := decimal.Zero
	for _, s := range h.Services {
		price = price.Add(s.Price)
	}

	return price, nil
}

// DiskOverageMonthly returns the monthly surcharge for disk usage
// above the quota of the radio's latest disk line item, and the
// overage in megabytes. Zero overage means no surcharge.
func (r *Resolver) DiskOverageMonthly(h *radio.Hosted, cur user.Currency) (decimal.Decimal, int64, error) {
	quotaMB := int64(h.DiskQuotaGB()) * 1024
	overMB := h.DiskUsageMB - quotaMB
	if overMB <= 0 {
		return decimal.Zero, 0, nil
	}

	perGB, ok := r.rates.DiskPerGB[cur]
	if !ok {
		return decimal.Zero, 0, fmt.Errorf("%w: %q", errUnknownCurrency, cur)
	}

	price := perGB.Mul(decimal.NewFromInt(overMB)).DivRound(mbPerGB, 4)

	return price, overMB, nil
}

func (r *Resolver) inTrial(createdAt, asOf time.Time) bool {
	if r.rates.TrialDays <= 0 {
		return false
	}
	return asOf.Sub(createdAt) < time.Duration(r.rates.TrialDays)*24*time.Hour
}
