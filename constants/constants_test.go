package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapExtToFormat(t *testing.T) {
	assert.Equal(t, TEXT, MapExtToFormat(".TXT"))
	assert.Equal(t, IMAGE, MapExtToFormat("jpeg"))
	assert.Equal(t, IMAGE, MapExtToFormat(".png"))
	assert.Equal(t, PDF, MapExtToFormat("PDF"))
	assert.Equal(t, SourceFormat(""), MapExtToFormat(".heic"))
}

func TestScanStatus(t *testing.T) {
	st, ok := ParseScanStatus("needs_review")
	assert.True(t, ok)
	assert.Equal(t, ScanStatusNeedsReview, st)
	assert.True(t, st.Terminal())
	assert.False(t, ScanStatusRunning.Terminal())

	_, ok = ParseScanStatus("NEEDS_REVIEW")
	assert.False(t, ok)
}

func TestAllScanStatusesParse(t *testing.T) {
	all := AllScanStatuses()
	assert.Len(t, all, 5)
	for _, s := range all {
		got, ok := ParseScanStatus(string(s))
		assert.True(t, ok, s)
		assert.Equal(t, s, got)
	}
}
