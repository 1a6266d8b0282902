package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lanikai/alohacam"
	"github.com/lanikai/alohacam/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:   "alohacamd",
		Short: "Live camera streaming for connected devices",
		Long: `Live camera streaming for connected devices.

The camera is opened only while at least one viewer is connected. Frames are
encoded as MJPEG or AV1 and pushed to every viewer over a websocket at /ws.
Without a subcommand, alohacamd runs "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagLogLevel != "" {
				return logging.Configure(flagLogLevel)
			}
			return nil
		},
		RunE: serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	pf := root.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	pf.StringVar(&flagLogLevel, "log-level", "", "Logging directives, e.g. info,capture=debug (default: $LOGLEVEL)")

	root.AddCommand(serve, newRelayCmd(), newDevicesCmd(), newVersionCmd())

	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd == root {
			printBanner(cmd.OutOrStdout())
		}
		defaultHelp(cmd, args)
	})
	return root
}

// loadConfig layers defaults, the --config file, the environment and the
// flags set on cmd, then validates the result.
func loadConfig(cmd *cobra.Command) (alohacam.Config, error) {
	cfg, err := alohacam.LoadConfig(flagConfig)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
