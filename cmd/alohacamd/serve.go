package main

import (
	"github.com/spf13/cobra"

	"github.com/lanikai/alohacam"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream the local camera to websocket viewers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := alohacam.NewPipeline(cfg)
			if err != nil {
				return err
			}
			return p.Run(cmd.Context())
		},
	}

	declared := alohacam.Defaults()
	declared.BindFlags(cmd.Flags())
	return cmd
}

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve websocket viewers from a NATS subject",
		Long: `Serve websocket viewers from a NATS subject published by
"alohacamd serve --nats-publish" on another host. The subject is subscribed
only while viewers are connected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			r, err := alohacam.NewRelay(cfg)
			if err != nil {
				return err
			}
			return r.Run(cmd.Context())
		},
	}

	declared := alohacam.Defaults()
	declared.BindFlags(cmd.Flags())
	return cmd
}
