package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
	svc "github.com/joseph-ayodele/invoice-extractor/internal/server"
)

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check the database and count scans per status",
	Long: `Connect to DB_URL, apply pending migrations and print how many scans
sit in each status.`,
	Args: cobra.NoArgs,
	RunE: runDBHealth,
}

func init() {
	rootCmd.AddCommand(dbhealthCmd)
}

func runDBHealth(cmd *cobra.Command, args []string) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("DB_URL env var is required")
	}
	ctx := cmd.Context()
	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("DB health: FAIL (%w)", err)
	}
	defer db.Close()

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "DB health: OK")

	scans := repo.NewScanRepository(db, logger)
	for _, st := range constants.AllScanStatuses() {
		list, err := scans.List(ctx, repo.ListScansFilter{Status: st})
		if err != nil {
			return fmt.Errorf("listing scans: %w", err)
		}
		fmt.Fprintf(w, "- %-13s %d\n", st, len(list))
	}
	return nil
}
