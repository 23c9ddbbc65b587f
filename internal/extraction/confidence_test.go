package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallConfidenceExcludesVAT(t *testing.T) {
	s := ConfidenceScores{
		InvoiceNumber: 0.9,
		InvoiceDate:   0.85,
		SupplierInfo:  0.8,
		TotalAmount:   0.9,
		LineItems:     0.8,
	}
	base := OverallConfidence(s)
	assert.InDelta(t, 0.85, base, 1e-9)

	s.VATAmount = 0.8
	assert.Equal(t, base, OverallConfidence(s))
}

func TestOverallConfidenceAllAbsent(t *testing.T) {
	assert.Equal(t, 0.0, OverallConfidence(ConfidenceScores{}))
}

func TestDecide(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, OutcomeCompleted, p.Decide(0.8))
	assert.Equal(t, OutcomeCompleted, p.Decide(1))
	assert.Equal(t, OutcomeNeedsReview, p.Decide(0.79))
	assert.Equal(t, OutcomeNeedsReview, p.Decide(0))

	p.ReviewThreshold = 0.5
	assert.Equal(t, OutcomeCompleted, p.Decide(0.6))
}
