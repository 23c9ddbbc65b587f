package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const facture = `Quincaillerie Durand SARL
SIRET 123 456 789 00012
Facture N° FACT-2024-0012
Date : 15/03/2024
Vis inox 3 10,00 30,00
Chevilles 2 35,00 70,00
TVA 20% 20,00
Total TTC 120,00 €
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facture.txt")
	require.NoError(t, os.WriteFile(path, []byte(facture), 0o600))

	out, err := run(t, "", "extract", "--compact", path)
	require.NoError(t, err)

	var inv map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &inv))
	assert.Equal(t, "FACT-2024-0012", inv["invoice_number"])
	assert.Equal(t, "2024-03-15", inv["invoice_date"])
}

func TestExtractStdin(t *testing.T) {
	out, err := run(t, facture, "extract", "--compact=false", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"invoice_number": "FACT-2024-0012"`)
	assert.Greater(t, strings.Count(out, "\n"), 5)
}

func TestExtractUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facture.docx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := run(t, "", "extract", path)
	assert.Error(t, err)
}

func TestBatchInMemory(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.Mkdir(in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte(facture), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "copy.txt"), []byte(facture), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.docx"), []byte("x"), 0o600))
	xlsx := filepath.Join(dir, "out.xlsx")

	out, err := run(t, "", "batch", "--dir", in, "--out", xlsx, "--inmem")
	require.NoError(t, err)
	assert.Contains(t, out, "- Invoices processed: 1")
	assert.Contains(t, out, "- Duplicates skipped: 1")

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "FACT-2024-0012", rows[1][3])
}
