package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
	svc "github.com/joseph-ayodele/invoice-extractor/internal/server"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every invoice in a directory and export a workbook",
	Long: `Ingest a directory of invoices, extract each new one and write an XLSX
workbook with an Invoices sheet and a LineItems sheet.

Examples:
  # Use a throwaway in-memory store
  invoicectl batch --dir ./factures --inmem

  # Only export the scans that need review
  invoicectl batch --dir ./factures --out review.xlsx --status needs_review`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("dir", "", "Directory to process invoices from (required)")
	batchCmd.Flags().String("out", "", "Output XLSX path (defaults to invoices.xlsx next to --dir)")
	batchCmd.Flags().Bool("inmem", false, "Use an in-memory SQLite database")
	batchCmd.Flags().String("status", "", "Only export scans with this status")
	batchCmd.Flags().Bool("include-hidden", false, "Also ingest hidden files and directories")
	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	out, _ := cmd.Flags().GetString("out")
	inmem, _ := cmd.Flags().GetBool("inmem")
	statusFlag, _ := cmd.Flags().GetString("status")
	includeHidden, _ := cmd.Flags().GetBool("include-hidden")

	if out == "" {
		out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "invoices.xlsx")
	}
	var status constants.ScanStatus
	if statusFlag != "" {
		s, ok := constants.ParseScanStatus(statusFlag)
		if !ok {
			return fmt.Errorf("invalid --status %q", statusFlag)
		}
		status = s
	}

	ctx := cmd.Context()
	dbCfg := cfg.Database
	if inmem {
		dbCfg = common.DatabaseConfig{Driver: string(repo.SQLite), DSN: ":memory:"}
	}
	db, err := svc.ConnectDB(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	scans := repo.NewScanRepository(db, logger)
	processor, err := pipeline.Build(cfg, scans, logger)
	if err != nil {
		return err
	}

	// no queue: new scans are registered and processed inline below
	ingestor := ingest.NewFSIngestor(scans, nil, logger)
	logger.Info("starting ingestion", "dir", dir)
	results, stats, err := ingestor.IngestDirectory(ctx, dir, !includeHidden)
	if err != nil {
		return fmt.Errorf("ingest directory: %w", err)
	}

	var processed, failures int
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		id, err := uuid.Parse(r.ScanID)
		if err != nil {
			logger.Error("failed to parse scan id", "scan_id", r.ScanID, "error", err)
			continue
		}
		if _, err := processor.ProcessScan(ctx, id); err != nil {
			logger.Error("failed to process scan", "scan_id", id, "path", r.SourcePath, "error", err)
			failures++
			continue
		}
		processed++
	}

	xlsx, err := export.NewService(scans, logger).ExportInvoicesXLSX(ctx, status)
	if err != nil {
		return fmt.Errorf("export invoices: %w", err)
	}
	if err := os.WriteFile(out, xlsx, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	logger.Info("batch processing complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"processed", processed,
		"failures", failures,
		"output_file", out)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Batch processing complete!\n")
	fmt.Fprintf(w, "- Files matched: %d\n", stats.Matched)
	fmt.Fprintf(w, "- Duplicates skipped: %d\n", stats.Deduplicated)
	fmt.Fprintf(w, "- Invoices processed: %d\n", processed)
	fmt.Fprintf(w, "- Failures: %d\n", failures)
	fmt.Fprintf(w, "- Output: %s\n", out)
	return nil
}
