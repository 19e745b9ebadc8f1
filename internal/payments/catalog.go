// Package payments maps payment-provider events onto tier changes and credit
// grants.
package payments

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"vocalizz/internal/domain"
)

// Plan is a recurring subscription price.
type Plan struct {
	PriceID string `yaml:"price_id"`
	Tier    string `yaml:"tier"`
	Credits int    `yaml:"credits"`
}

// Pack is a one-time credit purchase.
type Pack struct {
	PriceID string `yaml:"price_id"`
	Credits int    `yaml:"credits"`
}

// Catalog resolves price identifiers.
type Catalog struct {
	Plans []Plan `yaml:"plans"`
	Packs []Pack `yaml:"packs"`

	plans map[string]Plan
	packs map[string]Pack
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		Plans: []Plan{
			{PriceID: "prod_TRHMJTr0niy6sB", Tier: "pro", Credits: 20},
			{PriceID: "prod_TRHOTQn3cmA3BQ", Tier: "studio", Credits: 100},
		},
		Packs: []Pack{
			{PriceID: "prod_TRHQ9KiesC5ZEl", Credits: 10},
			{PriceID: "prod_TRHSQFBfyRBoTa", Credits: 50},
		},
	}
	if err := c.index(); err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a YAML catalog from path. An empty path yields the
// default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.plans = make(map[string]Plan, len(c.Plans))
	c.packs = make(map[string]Pack, len(c.Packs))
	for _, p := range c.Plans {
		if p.PriceID == "" {
			return fmt.Errorf("catalog: plan without price_id")
		}
		if _, ok := domain.ParseTier(p.Tier); !ok {
			return fmt.Errorf("catalog: plan %s has unknown tier %q", p.PriceID, p.Tier)
		}
		if p.Credits < 0 {
			return fmt.Errorf("catalog: plan %s has negative credits", p.PriceID)
		}
		c.plans[p.PriceID] = p
	}
	for _, p := range c.Packs {
		if p.PriceID == "" || p.Credits <= 0 {
			return fmt.Errorf("catalog: pack %q needs a price_id and positive credits", p.PriceID)
		}
		if _, dup := c.plans[p.PriceID]; dup {
			return fmt.Errorf("catalog: price %s is both a plan and a pack", p.PriceID)
		}
		c.packs[p.PriceID] = p
	}
	return nil
}

// Plan looks up a subscription price.
func (c *Catalog) Plan(priceID string) (Plan, bool) {
	p, ok := c.plans[priceID]
	return p, ok
}

// Pack looks up a credit pack price.
func (c *Catalog) Pack(priceID string) (Pack, bool) {
	p, ok := c.packs[priceID]
	return p, ok
}

// TierOf returns the domain tier of a plan. Plans are validated on load.
func (p Plan) TierOf() domain.Tier {
	t, _ := domain.ParseTier(p.Tier)
	return t
}
