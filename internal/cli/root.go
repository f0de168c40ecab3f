// Package cli implements the wrapctl commands.
package cli

import (
	"github.com/on-the-ground/wrapkit/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// Logger overrides the logger built from the configuration.
	Logger *zap.Logger
}

// NewRootCommand creates the root command for wrapctl.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}

	cmd := &cobra.Command{
		Use:   "wrapctl",
		Short: "Run wrapped numeric kernels in parallel",
		Long: `wrapctl evaluates a demo kernel over a domain through the wrapkit
layers (memoization, retry, call counting, timing) and the parallel range executor.`,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output on stderr")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(opts.ConfigPath)
}

func logger(opts *RootOptions, cfg config.Config) (*zap.Logger, error) {
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	return cfg.NewLogger()
}
