package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "rmohub",
		Short: "Regional road-condition analytics hub",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(loadCmd(&configPath))
	rootCmd.AddCommand(reportCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analytics API, websocket feed, and survey ingest",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(*configPath)
		},
	}
}

func loadCmd(configPath *string) *cobra.Command {
	var networkPath, surveysPath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import the network GeoJSON and survey CSV into the database",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLoad(*configPath, networkPath, surveysPath)
		},
	}
	cmd.Flags().StringVar(&networkPath, "network", "", "network GeoJSON path (defaults to the configured one)")
	cmd.Flags().StringVar(&surveysPath, "surveys", "", "survey readings CSV path")
	return cmd
}

func reportCmd(configPath *string) *cobra.Command {
	var year int
	var outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the Regional Report workbook and charts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runReport(*configPath, outDir, year)
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "survey year (0 means latest)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (defaults to the configured one)")
	return cmd
}
