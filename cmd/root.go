package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scenarioctl",
	Short: "Run HTTP scenario suites against docker-compose topologies",
	Long: `scenarioctl packages a fixture's artifacts, brings up its docker-compose
topology, waits for the service to announce readiness and probes HTTP
endpoints for expected JSON messages. The topology is torn down after
every case, whatever the outcome.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed cases, unreadable suites)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "scenarioctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPackageCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newVersionCmd())
}
