package cli

import (
	"fmt"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/roster"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/tracker"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <roster.yaml>",
	Short: "Import sites and supply history from a roster file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	r, err := roster.Load(args[0])
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	importer := roster.NewImporter(store, tracker.NewSupplyTracker(store, logger), logger)
	result, err := importer.Import(cmd.Context(), r)
	if err != nil {
		return fmt.Errorf("import roster: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %s:\n", args[0])
	fmt.Fprintf(out, "  Sites:            %d\n", result.Sites)
	fmt.Fprintf(out, "  Supplies added:   %d\n", result.SuppliesAdded)
	fmt.Fprintf(out, "  Supplies skipped: %d\n", result.SuppliesSkipped)
	return nil
}
