package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInvoiceJSONSchema describes the serialized ExtractedInvoice. Decimals
// are JSON strings, amounts carry exactly two decimals; absent fields are null.
func BuildInvoiceJSONSchema() map[string]any {
	nullableString := func(extra map[string]any) map[string]any {
		m := map[string]any{"type": []any{"string", "null"}}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}
	score := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}

	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string", "minLength": 1},
			"quantity":    decimalProp(),
			"unit_price":  moneyProp(),
			"line_total":  moneyProp(),
			"vat_rate":    decimalProp(),
		},
		"required": []any{"description", "quantity", "unit_price", "line_total", "vat_rate"},
	}

	scores := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoice_number": score,
			"invoice_date":   score,
			"supplier_info":  score,
			"total_amount":   score,
			"vat_amount":     score,
			"line_items":     score,
			"overall":        score,
		},
		"required": []any{"invoice_number", "invoice_date", "supplier_info", "total_amount", "vat_amount", "line_items", "overall"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoice_number":      nullableString(nil),
			"invoice_date":        nullableString(map[string]any{"pattern": `^\d{4}-\d{2}-\d{2}$`}),
			"supplier_name":       nullableString(nil),
			"supplier_siret":      nullableString(map[string]any{"pattern": `^\d{14}$`}),
			"supplier_vat_number": nullableString(map[string]any{"pattern": `^FR\d{11}$`}),
			"subtotal_ht":         nullableMoneyProp(),
			"vat_amount":          nullableMoneyProp(),
			"total_ttc":           nullableMoneyProp(),
			"line_items":          map[string]any{"type": "array", "items": lineItem},
			"raw_text":            map[string]any{"type": "string", "minLength": 1},
			"confidence_scores":   scores,
		},
		"required": []any{
			"invoice_number", "invoice_date", "supplier_name", "supplier_siret", "supplier_vat_number",
			"subtotal_ht", "vat_amount", "total_ttc", "line_items", "raw_text", "confidence_scores",
		},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d+)?$`,
	}
}

func moneyProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+\.\d{2}$`, // derived subtotal may go negative
	}
}

func nullableMoneyProp() map[string]any {
	return map[string]any{
		"type":    []any{"string", "null"},
		"pattern": `^-?\d+\.\d{2}$`,
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(BuildInvoiceJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("invoice.json")
})

// ValidateJSON checks a serialized ExtractedInvoice against the output schema.
func ValidateJSON(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
