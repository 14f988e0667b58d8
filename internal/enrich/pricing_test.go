package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-enrich/internal/model"
)

func TestLoadCatalog_EmbeddedDefault(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	require.NotEmpty(t, c.Services)

	svc, ok := c.Lookup("Scout Report")
	require.True(t, ok)
	assert.Equal(t, 4000.0, svc.UnitPrice)
	assert.Equal(t, "core_service", svc.Category)

	// Included services carry a zero price.
	free, ok := c.Lookup("Startup Ecosystem Events")
	require.True(t, ok)
	assert.Zero(t, free.UnitPrice)
}

func TestLoadCatalog_MissingFileFallsBack(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	_, ok := c.Lookup("Deal Memo")
	assert.True(t, ok)
}

func TestLoadCatalog_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  - name: Pilot Program
    category: core_service
    unit_price_eur: 1234
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	svc, ok := c.Lookup("pilot   program")
	require.True(t, ok, "lookup ignores case and spacing")
	assert.Equal(t, 1234.0, svc.UnitPrice)

	_, ok = c.Lookup("Scout Report")
	assert.False(t, ok, "custom catalog replaces the default")
}

func TestLoadCatalog_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: [unclosed"), 0o644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestRecompute_IgnoresGeneratedTotals(t *testing.T) {
	p := &model.PricingSummary{
		LineItems: []model.PricingLineItem{
			{Service: "Scout Report", Quantity: 1, UnitPrice: 4000, TotalPrice: 1},
			{Service: "SMB Meetings", Quantity: 0, UnitPrice: 1500, TotalPrice: 99},
		},
		TotalCost: 123456,
	}
	p.Recompute()

	assert.Equal(t, 4000.0, p.LineItems[0].TotalPrice)
	assert.Equal(t, 1, p.LineItems[1].Quantity, "quantity floors at one")
	assert.Equal(t, 1500.0, p.LineItems[1].TotalPrice)
	assert.Equal(t, 5500.0, p.TotalCost)
}

func TestNormalizeLineItems_NilSafe(t *testing.T) {
	var c *PricingCatalog
	p := &model.PricingSummary{
		LineItems: []model.PricingLineItem{{Service: "Scout Report", Quantity: 1, UnitPrice: 9}},
	}
	c.NormalizeLineItems(p)
	assert.Equal(t, 9.0, p.LineItems[0].UnitPrice, "no catalog means items pass through")
}
