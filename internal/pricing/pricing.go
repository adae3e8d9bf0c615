// Package pricing serves the plan descriptor shown to clients, selected
// by a coarse request-origin country signal.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Plan is the client-facing descriptor derived from a tier: formatted
// price plus per-credit unit prices computed at lookup time.
type Plan struct {
	Name           string `json:"name"`
	Currency       string `json:"currency"`
	Price          string `json:"price"`
	EbookCredits   int    `json:"ebook_credits"`
	ScriptCreds    int    `json:"script_credits"`
	PricePerEbook  string `json:"price_per_ebook"`
	PricePerScript string `json:"price_per_script"`
}

// tier is the raw regional price point the descriptors are derived from.
type tier struct {
	currency string
	price    float64
}

// creator tier credit allotments, identical in every region.
const (
	ebookCredits  = 10
	scriptCredits = 30
)

// defaultCountryKey caches the fallback descriptor under its own key.
const defaultCountryKey = "DEFAULT"

// Catalog resolves a country code to its derived plan descriptor. Derived
// descriptors are cached per country so the formatting work runs once per
// region, not once per pricing request.
type Catalog struct {
	tiers       map[string]tier
	defaultTier tier
	cache       *cache.Cache
}

// NewCatalog builds the built-in regional price table.
func NewCatalog() *Catalog {
	return &Catalog{
		tiers: map[string]tier{
			"IN": {currency: "INR", price: 499},
			"GB": {currency: "GBP", price: 7.99},
			"EU": {currency: "EUR", price: 8.99},
		},
		defaultTier: tier{currency: "USD", price: 9.99},
		cache:       cache.New(24*time.Hour, time.Hour),
	}
}

// Lookup returns the derived plan for a country code, falling back to the
// USD tier for unknown or empty countries.
func (c *Catalog) Lookup(country string) Plan {
	key := strings.ToUpper(strings.TrimSpace(country))
	if key == "" {
		key = defaultCountryKey
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Plan)
	}

	t, ok := c.tiers[key]
	if !ok {
		t = c.defaultTier
	}
	plan := buildPlan(t)
	c.cache.Set(key, plan, cache.DefaultExpiration)
	return plan
}

// buildPlan derives the client-facing descriptor from a raw tier.
func buildPlan(t tier) Plan {
	return Plan{
		Name:           "Creator",
		Currency:       t.currency,
		Price:          formatPrice(t.price),
		EbookCredits:   ebookCredits,
		ScriptCreds:    scriptCredits,
		PricePerEbook:  formatPrice(t.price / ebookCredits),
		PricePerScript: formatPrice(t.price / scriptCredits),
	}
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
