package cli

import (
	"fmt"

	"github.com/on-the-ground/wrapkit/config"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config.yaml]",
		Short: "Validate a configuration file",
		Long: `Load a configuration file over the defaults, build every policy it
describes and report all rejected parameters at once.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := *rootOpts
			if len(args) == 1 {
				opts.ConfigPath = args[0]
			}
			cfg, err := loadConfig(&opts)
			if err != nil {
				return err
			}
			printConfig(cmd, cfg)
			return nil
		},
	}
}

func printConfig(cmd *cobra.Command, cfg config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "configuration valid")
	fmt.Fprintf(out, "retry:      %d attempts, initial delay %s, factor %g\n",
		cfg.Retry.MaxAttempts, cfg.Retry.InitialDelay.Std(), cfg.Retry.BackoffFactor)
	fmt.Fprintf(out, "resilient:  %d attempts, timeout %s, delay %s, factor %g, on exhaustion %s\n",
		cfg.Resilient.MaxAttempts, cfg.Resilient.Timeout.Std(), cfg.Resilient.Delay.Std(),
		cfg.Resilient.BackoffFactor, cfg.Resilient.OnExhaustion)
	fmt.Fprintf(out, "executor:   %d workers max, %d concurrent\n",
		cfg.Executor.MaxWorkers, cfg.Executor.MaxConcurrentWorkers)
	fmt.Fprintf(out, "memo:       %d entries max, %s eviction\n", cfg.Memo.MaxEntries, cfg.Memo.Eviction)
	fmt.Fprintf(out, "log:        %s, buffer %d\n", cfg.Log.Level, cfg.Log.BufferSize)
}
