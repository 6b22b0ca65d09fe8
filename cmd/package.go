package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenarioctl/internal/config"
	"scenarioctl/internal/scenario"
)

type packageFlags struct {
	commonFlags
	artifactsDir string
}

func newPackageCmd() *cobra.Command {
	f := &packageFlags{}
	cmd := &cobra.Command{
		Use:   "package <suite.yaml>",
		Short: "Run the fixture setup and build the suite's archives",
		Long: `Run the fixture setup command of a suite and build its archives without
starting anything. The paths of the written archives are printed, one per line.

This does the same packaging a run does and ignores the run gate.`,
		Args: cobra.ExactArgs(1),
		RunE: f.run,
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.artifactsDir, "artifacts-dir", "", "Directory archives are written to, relative to the fixture directory")
	return cmd
}

func (f *packageFlags) run(cmd *cobra.Command, args []string) error {
	cfg, err := f.loadConfig(cmd, func(cfg *config.ScenarioctlConfig) {
		if cmd.Flags().Changed("artifacts-dir") {
			cfg.ArtifactsDir = f.artifactsDir
		}
	})
	if err != nil {
		return err
	}
	if err := initLogging(cmd, cfg); err != nil {
		return err
	}

	suite, err := scenario.LoadSuite(args[0])
	if err != nil {
		return err
	}

	runner, err := scenario.NewRunner(scenarioOptions(cfg), nil)
	if err != nil {
		return err
	}
	paths, err := runner.Package(commandContext(cmd), suite)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintf(out, "Suite %s declares no artifacts\n", suite.Name)
		return nil
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	return nil
}
