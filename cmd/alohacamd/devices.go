package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lanikai/alohacam/internal/v4l2"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available cameras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := v4l2.ListDevices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "no cameras found")
				return nil
			}

			fmt.Fprintln(out, "available cameras:")
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tDRIVER\tCARD\tFORMATS")
			for _, d := range devices {
				if !d.Capture {
					continue
				}
				var formats []string
				for _, f := range d.Formats {
					formats = append(formats, f.FourCC.String())
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Path, d.Driver, d.Card, strings.Join(formats, ","))
			}
			return w.Flush()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			tag := GitTag
			if tag == "" {
				tag = "dev"
			}
			fmt.Fprintln(out, "alohacamd", tag, GitRevisionId)
			fmt.Fprintln(out, "Copyright 2019 Lanikai Labs LLC. All rights reserved.")
		},
	}
}
