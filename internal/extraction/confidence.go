package extraction

// Outcome is the review decision derived from the overall confidence.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeNeedsReview Outcome = "needs_review"
)

// OverallConfidence is the unweighted mean of the five scored fields. VAT is
// reported per field but never averaged in.
func OverallConfidence(s ConfidenceScores) float64 {
	return (s.InvoiceNumber + s.InvoiceDate + s.SupplierInfo + s.TotalAmount + s.LineItems) / 5
}

// Decide routes an overall score below the review threshold to review.
func (p Policy) Decide(overall float64) Outcome {
	if overall < p.ReviewThreshold {
		return OutcomeNeedsReview
	}
	return OutcomeCompleted
}
