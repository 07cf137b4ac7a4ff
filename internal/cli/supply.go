package cli

import (
	"fmt"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/tracker"
	"github.com/spf13/cobra"
)

var supplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Record and cancel refueling events",
}

var supplyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a refueling event",
	RunE:  runSupplyAdd,
}

var supplyCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Exclude a supply record from forecasting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSupplyCancel,
}

func init() {
	rootCmd.AddCommand(supplyCmd)
	supplyCmd.AddCommand(supplyAddCmd)
	supplyCmd.AddCommand(supplyCancelCmd)

	supplyAddCmd.Flags().StringP("site", "s", "", "Site code")
	supplyAddCmd.Flags().String("work-order", "", "Work order number")
	supplyAddCmd.Flags().String("at", "", "Supply time, RFC 3339 (default: now)")
	supplyAddCmd.Flags().Float64("fuel-before", 0, "Tank level before refueling, in gallons")
	supplyAddCmd.Flags().Float64("fuel-added", 0, "Fuel added, in gallons")
	supplyAddCmd.Flags().Float64("runtime", 0, "Generator hour-meter reading")
	_ = supplyAddCmd.MarkFlagRequired("site")
	_ = supplyAddCmd.MarkFlagRequired("runtime")
}

func runSupplyAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	code, _ := cmd.Flags().GetString("site")
	workOrder, _ := cmd.Flags().GetString("work-order")
	at, _ := cmd.Flags().GetString("at")
	fuelBefore, _ := cmd.Flags().GetFloat64("fuel-before")
	fuelAdded, _ := cmd.Flags().GetFloat64("fuel-added")
	runtimeHours, _ := cmd.Flags().GetFloat64("runtime")

	var ts time.Time
	if at != "" {
		ts, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	site, err := store.GetSiteByCode(cmd.Context(), code)
	if err != nil {
		return fmt.Errorf("lookup site %s: %w", code, err)
	}

	record := &model.SupplyRecord{
		SiteID:       site.ID,
		WorkOrder:    workOrder,
		Timestamp:    ts.UTC(),
		FuelBefore:   fuelBefore,
		FuelAdded:    fuelAdded,
		RuntimeHours: runtimeHours,
	}

	if err := tracker.NewSupplyTracker(store, logger).Record(cmd.Context(), record); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Supply recorded:\n")
	fmt.Fprintf(out, "  ID:         %s\n", record.ID)
	fmt.Fprintf(out, "  Site:       %s (%s)\n", site.Code, site.Name)
	fmt.Fprintf(out, "  Time:       %s\n", record.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(out, "  Fuel after: %.2f gal\n", record.FuelAfter())
	fmt.Fprintf(out, "  Hour-meter: %.2f h\n", record.RuntimeHours)
	return nil
}

func runSupplyCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := tracker.NewSupplyTracker(store, logger).Cancel(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Supply %s cancelled\n", args[0])
	return nil
}
