package constants

// ScanStatus is the canonical extraction status for rows in scans.
type ScanStatus string

// Stable values (store these exact strings in DB).
const (
	ScanStatusQueued      ScanStatus = "queued"       // created, waiting for a worker
	ScanStatusRunning     ScanStatus = "running"      // OCR or extraction in progress
	ScanStatusCompleted   ScanStatus = "completed"    // overall confidence at or above threshold
	ScanStatusNeedsReview ScanStatus = "needs_review" // extracted, flagged for manual review
	ScanStatusFailed      ScanStatus = "failed"       // terminal failure, extracted_data holds the error
)

// Terminal reports whether no worker will touch the scan again.
func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusNeedsReview, ScanStatusFailed:
		return true
	}
	return false
}

// ParseScanStatus accepts a stored or user-supplied status string.
func ParseScanStatus(s string) (ScanStatus, bool) {
	switch st := ScanStatus(s); st {
	case ScanStatusQueued, ScanStatusRunning, ScanStatusCompleted, ScanStatusNeedsReview, ScanStatusFailed:
		return st, true
	}
	return "", false
}

// AllScanStatuses lists every status in lifecycle order.
func AllScanStatuses() []ScanStatus {
	return []ScanStatus{
		ScanStatusQueued, ScanStatusRunning, ScanStatusCompleted, ScanStatusNeedsReview, ScanStatusFailed,
	}
}
