package extraction

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyInput means the document holds no text at all, as opposed to text
// from which nothing could be extracted.
var ErrEmptyInput = errors.New("no text to extract from")

// Engine runs every field extractor over one document and assembles the
// result. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	policy   Policy
	parallel bool
	logger   *slog.Logger
}

type Option func(*Engine)

// WithParallel runs the independent extractors on separate goroutines. The
// result is identical to sequential execution.
func WithParallel(on bool) Option {
	return func(e *Engine) { e.parallel = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(p Policy, opts ...Option) *Engine {
	e := &Engine{policy: p, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the constants the engine scores with.
func (e *Engine) Policy() Policy { return e.policy }

// Extract turns a transcript into an ExtractedInvoice. The only error is
// ErrEmptyInput; every other gap is expressed as an absent field.
func (e *Engine) Extract(doc RawDocument) (*ExtractedInvoice, error) {
	text := doc.FullText()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	body := RawDocument{Text: text, Blocks: doc.Blocks}

	var (
		number, date Candidate[string]
		supplier     Candidate[Supplier]
		total, vat   Candidate[decimal.Decimal]
		items        Candidate[LineItems]
	)
	tasks := []func(){
		func() { number = ExtractInvoiceNumber(text, e.policy) },
		func() { date = ExtractDate(text, e.policy) },
		func() { supplier = ExtractSupplier(text, e.policy) },
		func() { total = ExtractTotal(text, e.policy) },
		func() { vat = ExtractVAT(text, e.policy) },
		func() { items = ExtractLineItems(body, e.policy) },
	}
	if e.parallel {
		var g errgroup.Group
		for _, task := range tasks {
			g.Go(func() error {
				task()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, task := range tasks {
			task()
		}
	}

	inv := &ExtractedInvoice{
		InvoiceNumber:     strPtr(number),
		InvoiceDate:       strPtr(date),
		SupplierName:      supplier.Value.Name,
		SupplierSIRET:     supplier.Value.SIRET,
		SupplierVATNumber: supplier.Value.VATNumber,
		VATAmount:         nullDecimal(vat),
		TotalTTC:          nullDecimal(total),
		LineItems:         items.Value.Items,
		RawText:           text,
		ConfidenceScores: ConfidenceScores{
			InvoiceNumber: number.Confidence,
			InvoiceDate:   date.Confidence,
			SupplierInfo:  supplier.Confidence,
			TotalAmount:   total.Confidence,
			VATAmount:     vat.Confidence,
			LineItems:     items.Confidence,
		},
	}
	if inv.LineItems == nil {
		inv.LineItems = []LineItem{}
	}
	deriveSubtotal(inv)
	inv.ConfidenceScores.Overall = OverallConfidence(inv.ConfidenceScores)

	e.logger.Debug("extraction.done",
		"invoice_number", !number.Absent(),
		"invoice_date", !date.Absent(),
		"total", !total.Absent(),
		"vat", !vat.Absent(),
		"line_items", len(inv.LineItems),
		"overall", inv.ConfidenceScores.Overall,
	)
	return inv, nil
}

// deriveSubtotal sets subtotal_ht = total_ttc - vat_amount when both are
// known and the subtotal is not. No other field is derived.
func deriveSubtotal(inv *ExtractedInvoice) {
	if inv.SubtotalHT.Valid || !inv.TotalTTC.Valid || !inv.VATAmount.Valid {
		return
	}
	inv.SubtotalHT = decimal.NewNullDecimal(inv.TotalTTC.Decimal.Sub(inv.VATAmount.Decimal))
}
