package main

import (
	"github.com/spf13/cobra"

	"github.com/larderhq/larder/internal/api"
	"github.com/larderhq/larder/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	userID       string
)

var rootCmd = &cobra.Command{
	Use:   "larder",
	Short: "Recipe extraction pipeline for scanned cookbooks and recipe PDFs",
	Long: `Larder extracts structured recipes from uploaded PDF documents.

A submitted document is fanned out into one extraction task per page; each
page is rendered and sent to a vision model, and results are aggregated into
a single job status the client polls:

  - Submit a PDF and get a job ID back immediately
  - Poll the job for progress, extracted recipes and skipped pages
  - Cancel an in-flight job; pages not yet started are dropped`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ~/.larder/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "larder home directory (default: ~/.larder)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&userID, "user", "", "user ID sent with API requests",
	)

	// Set output format and user before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
		if userID != "" {
			api.SetUser(userID)
		}
	}

	rootCmd.AddCommand(versionCmd)
}
