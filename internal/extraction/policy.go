package extraction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the single table of tuned constants used by the extractors and the
// aggregator. It can be overlaid from a YAML file without rebuilding.
type Policy struct {
	InvoiceNumberStrict float64 `yaml:"invoice_number_strict"`
	InvoiceNumberLoose  float64 `yaml:"invoice_number_loose"`
	Date                float64 `yaml:"date"`
	TotalStrong         float64 `yaml:"total_strong"`
	TotalLabelled       float64 `yaml:"total_labelled"`
	TotalFallback       float64 `yaml:"total_fallback"`
	VAT                 float64 `yaml:"vat"`
	SupplierNamed       float64 `yaml:"supplier_named"`
	SupplierUnnamed     float64 `yaml:"supplier_unnamed"`
	LineItemsFound      float64 `yaml:"line_items_found"`
	LineItemsNone       float64 `yaml:"line_items_none"`

	// LineTolerance is the max |qty*unit_price - line_total|, exclusive.
	LineTolerance float64 `yaml:"line_tolerance"`
	// DefaultVATRate is stamped on every accepted line item, in percent.
	DefaultVATRate float64 `yaml:"default_vat_rate"`
	// ReviewThreshold: overall confidence strictly below it needs review.
	ReviewThreshold float64 `yaml:"review_threshold"`
}

// DefaultPolicy returns the stock constants.
func DefaultPolicy() Policy {
	return Policy{
		InvoiceNumberStrict: 0.9,
		InvoiceNumberLoose:  0.7,
		Date:                0.85,
		TotalStrong:         0.9,
		TotalLabelled:       0.7,
		TotalFallback:       0.5,
		VAT:                 0.8,
		SupplierNamed:       0.8,
		SupplierUnnamed:     0.3,
		LineItemsFound:      0.8,
		LineItemsNone:       0.2,
		LineTolerance:       1.0,
		DefaultVATRate:      20.0,
		ReviewThreshold:     0.8,
	}
}

// LoadPolicy reads a YAML file over DefaultPolicy. Keys missing from the file
// keep their default. An empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks every score lies in [0,1] and the tolerance is positive.
func (p Policy) Validate() error {
	scores := []struct {
		name  string
		value float64
	}{
		{"invoice_number_strict", p.InvoiceNumberStrict},
		{"invoice_number_loose", p.InvoiceNumberLoose},
		{"date", p.Date},
		{"total_strong", p.TotalStrong},
		{"total_labelled", p.TotalLabelled},
		{"total_fallback", p.TotalFallback},
		{"vat", p.VAT},
		{"supplier_named", p.SupplierNamed},
		{"supplier_unnamed", p.SupplierUnnamed},
		{"line_items_found", p.LineItemsFound},
		{"line_items_none", p.LineItemsNone},
		{"review_threshold", p.ReviewThreshold},
	}
	for _, s := range scores {
		if s.value < 0 || s.value > 1 {
			return fmt.Errorf("policy %s=%v outside [0,1]", s.name, s.value)
		}
	}
	if p.LineTolerance <= 0 {
		return fmt.Errorf("policy line_tolerance=%v must be positive", p.LineTolerance)
	}
	if p.DefaultVATRate < 0 {
		return fmt.Errorf("policy default_vat_rate=%v must not be negative", p.DefaultVATRate)
	}
	return nil
}
