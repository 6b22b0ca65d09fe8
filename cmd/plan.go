package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"scenarioctl/internal/compose"
	"scenarioctl/internal/process"
	"scenarioctl/internal/scenario"
)

type planFlags struct {
	commonFlags
	platform string
}

func newPlanCmd() *cobra.Command {
	f := &planFlags{}
	cmd := &cobra.Command{
		Use:   "plan <suite.yaml>",
		Short: "Show the compose invocations a run would use",
		Long: `Print the compose commands and environment a run of the suite would use,
without spawning anything. Use --platform to see the invocation for another host
operating system; the Linux overlay file is only used on Linux.`,
		Args: cobra.ExactArgs(1),
		RunE: f.run,
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.platform, "platform", "", "Host platform: linux, windows, darwin or other (default: this host)")
	_ = cmd.RegisterFlagCompletionFunc("platform", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"linux", "windows", "darwin", "other"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func (f *planFlags) run(cmd *cobra.Command, args []string) error {
	platform, err := compose.ParsePlatform(f.platform)
	if err != nil {
		return err
	}
	cfg, err := f.loadConfig(cmd)
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

	composeCfg := composeConfig(cfg)
	composeCfg.ProjectDir = suite.FixtureDir
	composeCfg.Platform = platform
	orch := compose.NewOrchestrator(composeCfg)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Suite:     %s\n", suite.Name)
	fmt.Fprintf(out, "Project:   %s\n", suite.FixtureDir)
	fmt.Fprintf(out, "Platform:  %s\n", platform)
	fmt.Fprintf(out, "Start:     %s\n", orch.UpCommand())
	printEnv(cmd, orch.UpCommand())
	fmt.Fprintf(out, "Stop:      %s\n", orch.DownCommand())
	return nil
}

func printEnv(cmd *cobra.Command, c process.Command) {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Environment:")
	for _, k := range keys {
		fmt.Fprintf(out, "  %s=%s\n", k, c.Env[k])
	}
}
