package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract one invoice and print its JSON",
	Long: `Extract the fields of one invoice and print the result as JSON.

The file is read through the configured OCR providers; plain text files
need none. With no file, or "-", the transcript is read from stdin.

Examples:
  # Extract from an OCR transcript
  invoicectl extract facture.txt

  # Pipe text in
  pdftotext facture.pdf - | invoicectl extract`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("compact", false, "Print JSON on a single line")
	extractCmd.Flags().Bool("outcome", false, "Print the review outcome on stderr")
}

func runExtract(cmd *cobra.Command, args []string) error {
	compact, _ := cmd.Flags().GetBool("compact")
	showOutcome, _ := cmd.Flags().GetBool("outcome")

	processor, err := pipeline.Build(cfg, nil, logger)
	if err != nil {
		return err
	}

	var res pipeline.Result
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		res, err = processor.ExtractDocument(extraction.RawDocument{Text: string(b)})
		if err != nil {
			return err
		}
	} else {
		res, err = processor.ExtractFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
	}

	out := []byte(res.JSON)
	if !compact {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.JSON, "", "  "); err != nil {
			return fmt.Errorf("format output: %w", err)
		}
		out = buf.Bytes()
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
		return err
	}
	if showOutcome {
		fmt.Fprintf(cmd.ErrOrStderr(), "outcome: %s (overall %.2f)\n", res.Outcome, res.Invoice.ConfidenceScores.Overall)
	}
	return nil
}
