package enrich

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crm-enrich/internal/model"
)

//go:embed pricing_catalog.yaml
var defaultCatalogYAML []byte

// CatalogService is one offerable service with its fixed price. Prices are
// in EUR; zero means the service is included in the standard package.
type CatalogService struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Category    string  `yaml:"category"`
	UnitPrice   float64 `yaml:"unit_price_eur"`
}

// PricingCatalog is the authoritative service price list. Generated pricing
// line items are normalized against it so an invented unit price can never
// reach the stored result.
type PricingCatalog struct {
	Services []CatalogService `yaml:"services"`

	byName map[string]*CatalogService
}

// LoadCatalog reads a catalog from a YAML file, or the embedded default
// when path is empty or the file does not exist.
func LoadCatalog(path string) (*PricingCatalog, error) {
	raw := defaultCatalogYAML
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			raw = data
		case os.IsNotExist(err):
			// Fall through to the embedded default.
		default:
			return nil, eris.Wrapf(err, "enrich: read pricing catalog %s", path)
		}
	}

	var c PricingCatalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, eris.Wrap(err, "enrich: parse pricing catalog")
	}
	c.byName = make(map[string]*CatalogService, len(c.Services))
	for i := range c.Services {
		c.byName[catalogKey(c.Services[i].Name)] = &c.Services[i]
	}
	return &c, nil
}

// Lookup finds a service by name, tolerating case and spacing differences.
func (c *PricingCatalog) Lookup(name string) (*CatalogService, bool) {
	if c == nil {
		return nil, false
	}
	svc, ok := c.byName[catalogKey(name)]
	return svc, ok
}

// NormalizeLineItems snaps each generated line item whose service name
// matches the catalog to the catalog's price and category. Unrecognized
// services are kept as parsed; they are flagged in the pricing notes so a
// reviewer can spot them. Call Recompute afterwards to settle the totals.
func (c *PricingCatalog) NormalizeLineItems(p *model.PricingSummary) {
	if c == nil || p == nil {
		return
	}
	for i := range p.LineItems {
		li := &p.LineItems[i]
		svc, ok := c.Lookup(li.Service)
		if !ok {
			p.Notes = append(p.Notes, "Service not in catalog: "+li.Service)
			continue
		}
		li.Service = svc.Name
		li.Category = svc.Category
		li.UnitPrice = svc.UnitPrice
		if li.Description == "" {
			li.Description = svc.Description
		}
	}
}

func catalogKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
