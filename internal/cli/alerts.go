package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ogulcanaydogan/fuel-guardian/pkg/lifecycle"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/model"
	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Reconcile and inspect refuel alerts",
}

var alertsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation cycle over all active sites",
	RunE:  runAlertsRun,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE:  runAlertsList,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsRunCmd)
	alertsCmd.AddCommand(alertsListCmd)

	alertsRunCmd.Flags().BoolP("verbose", "v", false, "Show per-site results")
	alertsListCmd.Flags().BoolP("all", "a", false, "Include closed alerts")
	alertsListCmd.Flags().StringP("site", "s", "", "Filter by site code")
}

func runAlertsRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	rt, err := initRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.manager.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	printReport(cmd.OutOrStdout(), report, verbose)
	return nil
}

func printReport(out io.Writer, r *lifecycle.CycleReport, verbose bool) {
	fmt.Fprintf(out, "Cycle finished in %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Sites:         %d\n", r.Sites)
	fmt.Fprintf(out, "  Predicted:     %d\n", r.Predicted)

	reasons := make([]string, 0, len(r.Skipped))
	for reason := range r.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "  Skipped:       %d (%s)\n", r.Skipped[reason], reason)
	}

	fmt.Fprintf(out, "  Alerts:        %d created, %d updated, %d replaced, %d closed, %d unchanged\n",
		r.Created, r.Updated, r.Replaced, r.Closed, r.Unchanged)
	fmt.Fprintf(out, "  Notifications: %d sent, %d failed, %d skipped\n",
		r.NotificationsSent, r.NotificationsFailed, r.NotificationsSkipped)

	if !verbose || len(r.Results) == 0 {
		return
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SITE\tSEVERITY\tDAYS\tACTION\tNOTE\n")
	for _, res := range r.Results {
		if res.SkipReason != "" {
			note := res.SkipReason
			if res.Err != nil {
				note += ": " + res.Err.Error()
			}
			fmt.Fprintf(w, "%s\t-\t-\tskipped\t%s\n", res.SiteCode, note)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", res.SiteCode, res.Severity, res.Days, res.Action, deliveryNote(res))
	}
	w.Flush()
}

func deliveryNote(res lifecycle.SiteResult) string {
	parts := make([]string, 0, len(res.Deliveries))
	for _, d := range res.Deliveries {
		parts = append(parts, d.Channel+"="+string(d.Status))
	}
	return strings.Join(parts, " ")
}

func runAlertsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	code, _ := cmd.Flags().GetString("site")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	filter := model.AlertFilter{State: model.AlertOpen}
	if all {
		filter.State = ""
	}
	if code != "" {
		site, err := store.GetSiteByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("lookup site %s: %w", code, err)
		}
		filter.SiteID = site.ID
	}

	list, err := store.ListAlerts(ctx, filter)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No alerts.")
		return nil
	}

	sites, err := store.ListSites(ctx, false)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	codes := make(map[string]string, len(sites))
	for _, s := range sites {
		codes[s.ID] = s.Code
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SITE\tSEVERITY\tSTATE\tCREATED\tMESSAGE\n")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			codes[a.SiteID], a.Severity, a.State, a.CreatedAt.Format("2006-01-02 15:04"), a.Message)
	}
	w.Flush()
	return nil
}
