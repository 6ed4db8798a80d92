package main

import (
	"os"

	"github.com/Sternrassler/uncover/pkg/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
	pretty     bool

	cfg Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "uncover",
		Short:         "Windowed paging over large remote result lists",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Configuration file path (JSONC)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Human-readable log output")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newBrowseCmd(opts))
	rootCmd.AddCommand(newWarmCmd(opts))

	return rootCmd
}

// load builds the effective configuration and sets up logging.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return err
	}
	applyEnv(&cfg, os.Getenv)

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Pretty = o.pretty
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	o.cfg = cfg
	return nil
}
