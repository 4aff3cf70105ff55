package cli

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/henrykironde/conveyor/internal/envinfo"
	"github.com/henrykironde/conveyor/internal/workflow"
)

// NewEnvCommand creates the env command.
func NewEnvCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the local execution environment",
		Long: `Report the machine workflows execute on: OS, architecture, CPU,
memory, and runtime versions. The local analogue of a runner's
environment dump.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(rootOpts, cmd)
		},
	}

	return cmd
}

func runEnv(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	report := envinfo.Collect(cmd.Context())

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	table := tablewriter.NewWriter(formatter.Writer)
	table.Header("Field", "Value")
	table.Append("Hostname", report.Hostname)
	table.Append("OS", report.OS)
	table.Append("Platform", report.Platform+" "+report.PlatformVersion)
	table.Append("Kernel", report.KernelVersion)
	table.Append("Arch", report.Arch)
	table.Append("CPU", report.CPUModel)
	table.Append("CPU Count", strconv.Itoa(report.CPUCount))
	table.Append("Memory (MB)", strconv.FormatUint(report.MemoryTotalMB, 10))
	table.Append("Go", report.GoVersion)
	table.Append("Engine", workflow.EngineVersion)
	table.Append("Dialect", workflow.DialectVersion)
	table.Render()

	return nil
}
