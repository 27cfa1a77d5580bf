package cmd

import (
	"github.com/geoeco/tracker/internal/modules/generation"
	"github.com/spf13/cobra"
)

var genOpts = generation.DefaultOptions()

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Wipe the registry and generate a synthetic national dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("seed") {
			genOpts.Seed = cfg.Seed
		}
		if !cmd.Flags().Changed("targets-json") {
			genOpts.TargetsJSON = cfg.TargetsJSON
		}

		container, _, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Close()

		report, err := container.Generator.Generate(cmd.Context(), genOpts)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&genOpts.Sites, "sites", genOpts.Sites, "Total sites to create")
	f.IntVar(&genOpts.Companies, "companies", genOpts.Companies, "Minimum number of operating companies")
	f.IntVar(&genOpts.Years, "years", genOpts.Years, "Years of production history per site")
	f.IntVar(&genOpts.Monthly, "monthly", genOpts.Monthly, "Monthly environmental readings per site")
	f.IntVar(&genOpts.AlertsPerSite, "alerts", genOpts.AlertsPerSite, "Alerts per site")
	f.Uint64Var(&genOpts.Seed, "seed", genOpts.Seed, "Random seed (defaults to GEOECO_SEED)")
	f.Float64Var(&genOpts.MinKm, "min-km", genOpts.MinKm, "Minimum separation between sites in a region, km")
	f.IntVar(&genOpts.PerRegionFloor, "per-region-floor", genOpts.PerRegionFloor, "Minimum sites per region")
	f.IntVar(&genOpts.TriesPerPoint, "tries-per-point", genOpts.TriesPerPoint, "Sampling attempts per requested site")
	f.StringVar(&genOpts.TargetsJSON, "targets-json", "", `National targets override, e.g. {"tonnes": {"Limestone": 2e7}}`)
	f.BoolVar(&genOpts.WipeCompanies, "wipe-companies", false, "Also delete existing companies")
	f.IntVar(&genOpts.Workers, "workers", 0, "Concurrent region samplers (0 means one per region)")
}
