package payments

import (
	"os"
	"path/filepath"
	"testing"

	"vocalizz/internal/domain"
)

func TestParseCatalog(t *testing.T) {
	raw := []byte(`
plans:
  - price_id: price_pro
    tier: pro
    credits: 20
packs:
  - price_id: price_pack10
    credits: 10
`)
	c, err := ParseCatalog(raw)
	if err != nil {
		t.Fatalf("ParseCatalog returned error: %v", err)
	}
	plan, ok := c.Plan("price_pro")
	if !ok || plan.TierOf() != domain.TierStandard || plan.Credits != 20 {
		t.Fatalf("unexpected plan: %+v ok=%v", plan, ok)
	}
	if pack, ok := c.Pack("price_pack10"); !ok || pack.Credits != 10 {
		t.Fatalf("unexpected pack: %+v ok=%v", pack, ok)
	}
	if _, ok := c.Plan("price_pack10"); ok {
		t.Fatalf("pack must not resolve as a plan")
	}
}

func TestParseCatalogRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"unknown tier":   "plans:\n  - price_id: p\n    tier: gold\n    credits: 1\n",
		"empty pack":     "packs:\n  - price_id: p\n    credits: 0\n",
		"plan and pack":  "plans:\n  - price_id: p\n    tier: pro\npacks:\n  - price_id: p\n    credits: 5\n",
		"missing price":  "plans:\n  - tier: pro\n",
		"malformed yaml": "plans: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog(\"\") returned error: %v", err)
	}
	if plan, ok := c.Plan("prod_TRHOTQn3cmA3BQ"); !ok || plan.TierOf() != domain.TierPremium {
		t.Fatalf("default catalog should map the studio plan to premium")
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("packs:\n  - price_id: x\n    credits: 3\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	c, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if _, ok := c.Pack("x"); !ok {
		t.Fatalf("pack x not loaded")
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
