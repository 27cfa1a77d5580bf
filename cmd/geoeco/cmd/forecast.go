package cmd

import (
	"fmt"

	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/spf13/cobra"
)

var (
	forecastYears   int
	forecastMonths  int
	forecastWorkers int
	forecastRecalc  bool
	forecastSites   []int64
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Recompute stored forecasts for every site, or only --site ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := forecast.RefreshOptions{
			YearsAhead:  cfg.Forecast.YearsAhead,
			MonthsAhead: cfg.Forecast.MonthsAhead,
			Workers:     cfg.Forecast.Workers,
			RecalcBand:  cfg.Forecast.RecalcBand,
			SiteIDs:     forecastSites,
		}
		if cmd.Flags().Changed("years-ahead") {
			opts.YearsAhead = forecastYears
		}
		if cmd.Flags().Changed("months-ahead") {
			opts.MonthsAhead = forecastMonths
		}
		if cmd.Flags().Changed("workers") {
			opts.Workers = forecastWorkers
		}
		if cmd.Flags().Changed("recalc-band") {
			opts.RecalcBand = forecastRecalc
		}
		if opts.YearsAhead < 0 || opts.MonthsAhead < 0 {
			return fmt.Errorf("horizons must not be negative")
		}

		container, _, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Close()

		summary, err := container.ForecastService.RefreshAll(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	f := forecastCmd.Flags()
	f.IntVar(&forecastYears, "years-ahead", 3, "Annual production horizon")
	f.IntVar(&forecastMonths, "months-ahead", 6, "Monthly environmental horizon")
	f.IntVar(&forecastWorkers, "workers", 4, "Sites refreshed concurrently")
	f.BoolVar(&forecastRecalc, "recalc-band", true, "Reclassify each site's band from its latest reading")
	f.Int64SliceVar(&forecastSites, "site", nil, "Limit the refresh to these site ids (repeatable)")
}
