package cli

import (
	"fmt"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/forecast"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/lifecycle"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/tracker"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast fuel exhaustion for a site",
	Long: `Forecast when a site's generator runs out of fuel and store the result.
Alerts are not touched; use 'fuelguard alerts run' for that.`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringP("site", "s", "", "Site code")
	_ = predictCmd.MarkFlagRequired("site")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	code, _ := cmd.Flags().GetString("site")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	site, err := store.GetSiteByCode(cmd.Context(), code)
	if err != nil {
		return fmt.Errorf("lookup site %s: %w", code, err)
	}

	out := cmd.OutOrStdout()
	prediction, est, err := tracker.NewPredictor(store, cfg.Forecast, nil, logger).Predict(cmd.Context(), site.ID)
	if forecast.IsNotForecastable(err) {
		fmt.Fprintf(out, "%s (%s) cannot be forecast yet: %v\n", site.Code, site.Name, err)
		return nil
	}
	if err != nil {
		return err
	}

	a := lifecycle.Classify(prediction.ExhaustionAt, time.Now(), thresholds(cfg))

	usage := fmt.Sprintf("%.2f h/day", est.DailyUsage)
	if est.UsageDefaulted {
		usage += " (default)"
	}

	fmt.Fprintf(out, "Forecast for %s (%s):\n", site.Code, site.Name)
	fmt.Fprintf(out, "  Records:          %d (%d valid intervals, %d kept)\n", est.Records, est.ValidIntervals, est.RetainedSamples)
	fmt.Fprintf(out, "  Rate:             %.4f gal/h (%s)\n", est.HourlyRate, est.Method)
	fmt.Fprintf(out, "  Fuel after last:  %.2f gal\n", est.CurrentFuel)
	fmt.Fprintf(out, "  Hours remaining:  %.2f h\n", est.RemainingHours)
	fmt.Fprintf(out, "  Daily usage:      %s\n", usage)
	fmt.Fprintf(out, "  Exhaustion:       %s at %.2f h\n", prediction.ExhaustionAt.Format(time.RFC3339), prediction.ExhaustionRuntime)
	fmt.Fprintf(out, "  Days remaining:   %d\n", a.Days)
	fmt.Fprintf(out, "  Severity:         %s\n", a.Severity)
	return nil
}
