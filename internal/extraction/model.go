package extraction

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// RawDocument is the engine input: the OCR transcript plus the optional
// block/line grouping reported by the OCR provider.
type RawDocument struct {
	Text   string  `json:"raw_text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is one layout region of the source page, lines in reading order.
type Block struct {
	Lines []string `json:"lines"`
}

// FullText returns Text, or the blocks joined line by line when the provider
// only reported layout.
func (d RawDocument) FullText() string {
	if d.Text != "" || len(d.Blocks) == 0 {
		return d.Text
	}
	var b strings.Builder
	for _, blk := range d.Blocks {
		for _, ln := range blk.Lines {
			b.WriteString(ln)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// LineItem is an accepted row of the invoice body table.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	VATRate     decimal.Decimal `json:"vat_rate"`
}

// MarshalJSON renders unit_price and line_total with two decimals.
func (li LineItem) MarshalJSON() ([]byte, error) {
	type plain LineItem
	return json.Marshal(struct {
		plain
		UnitPrice string `json:"unit_price"`
		LineTotal string `json:"line_total"`
	}{plain(li), li.UnitPrice.StringFixed(2), li.LineTotal.StringFixed(2)})
}

// ConfidenceScores carries the per-field scores and the overall mean.
type ConfidenceScores struct {
	InvoiceNumber float64 `json:"invoice_number"`
	InvoiceDate   float64 `json:"invoice_date"`
	SupplierInfo  float64 `json:"supplier_info"`
	TotalAmount   float64 `json:"total_amount"`
	VATAmount     float64 `json:"vat_amount"`
	LineItems     float64 `json:"line_items"`
	Overall       float64 `json:"overall"`
}

// ExtractedInvoice is the engine result. Absent fields are nil / invalid.
type ExtractedInvoice struct {
	InvoiceNumber     *string             `json:"invoice_number"`
	InvoiceDate       *string             `json:"invoice_date"` // YYYY-MM-DD
	SupplierName      *string             `json:"supplier_name"`
	SupplierSIRET     *string             `json:"supplier_siret"`
	SupplierVATNumber *string             `json:"supplier_vat_number"`
	SubtotalHT        decimal.NullDecimal `json:"subtotal_ht"`
	VATAmount         decimal.NullDecimal `json:"vat_amount"`
	TotalTTC          decimal.NullDecimal `json:"total_ttc"`
	LineItems         []LineItem          `json:"line_items"`
	RawText           string              `json:"raw_text"`
	ConfidenceScores  ConfidenceScores    `json:"confidence_scores"`
}

// MarshalJSON renders the amounts with two decimals, null when absent.
func (inv ExtractedInvoice) MarshalJSON() ([]byte, error) {
	type plain ExtractedInvoice
	return json.Marshal(struct {
		plain
		SubtotalHT *string `json:"subtotal_ht"`
		VATAmount  *string `json:"vat_amount"`
		TotalTTC   *string `json:"total_ttc"`
	}{plain(inv), money(inv.SubtotalHT), money(inv.VATAmount), money(inv.TotalTTC)})
}

func money(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

// Clone returns a copy that shares no mutable state with inv.
func (inv *ExtractedInvoice) Clone() *ExtractedInvoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.InvoiceNumber = clonePtr(inv.InvoiceNumber)
	out.InvoiceDate = clonePtr(inv.InvoiceDate)
	out.SupplierName = clonePtr(inv.SupplierName)
	out.SupplierSIRET = clonePtr(inv.SupplierSIRET)
	out.SupplierVATNumber = clonePtr(inv.SupplierVATNumber)
	if inv.LineItems != nil {
		out.LineItems = slices.Clone(inv.LineItems)
	}
	return &out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func strPtr(c Candidate[string]) *string {
	if c.Absent() {
		return nil
	}
	v := c.Value
	return &v
}

func nullDecimal(c Candidate[decimal.Decimal]) decimal.NullDecimal {
	if c.Absent() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(c.Value)
}
