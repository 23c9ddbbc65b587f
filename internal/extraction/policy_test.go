package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicyDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)
	assert.NoError(t, p.Validate())
}

func TestLoadPolicyOverlay(t *testing.T) {
	path := writePolicy(t, "review_threshold: 0.6\nline_tolerance: 0.5\n")

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, p.ReviewThreshold)
	assert.Equal(t, 0.5, p.LineTolerance)
	assert.Equal(t, 0.9, p.InvoiceNumberStrict)
	assert.Equal(t, 20.0, p.DefaultVATRate)
}

func TestLoadPolicyRejectsOutOfRange(t *testing.T) {
	_, err := LoadPolicy(writePolicy(t, "date: 1.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date")

	_, err = LoadPolicy(writePolicy(t, "line_tolerance: 0\n"))
	assert.Error(t, err)
}

func TestLoadPolicyErrors(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadPolicy(writePolicy(t, "review_threshold: [\n"))
	assert.Error(t, err)
}

func TestValidateReportsFirstField(t *testing.T) {
	p := DefaultPolicy()
	p.InvoiceNumberStrict = 2
	p.VAT = -0.5
	p.ReviewThreshold = -1

	for range 20 {
		err := p.Validate()
		require.Error(t, err)
		assert.Equal(t, "policy invoice_number_strict=2 outside [0,1]", err.Error())
	}
}
