// Package cmd implements the reconctl CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL string
	flagOrgID  string
	flagOutput string
)

var rootCmd = &cobra.Command{
	Use:   "reconctl",
	Short: "ReconForge scan job CLI",
	Long: `reconctl manages reconnaissance scan jobs against a ReconForge API.

It can submit jobs, watch their progress, stop them, and inspect
aggregated results without leaving the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "API base URL (env: RECONFORGE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagOrgID, "org", "", "Organization ID (env: RECONFORGE_ORG_ID)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(targetsCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("RECONFORGE_API_URL")
	}
	if flagAPIURL == "" {
		flagAPIURL = "http://localhost:8080"
	}
	if flagOrgID == "" {
		flagOrgID = os.Getenv("RECONFORGE_ORG_ID")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("reconctl " + version)
	},
}
