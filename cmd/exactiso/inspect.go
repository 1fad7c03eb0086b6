package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cochaviz/exactiso/internal/artifacts"
)

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image.iso>",
		Short: "Show the volume label and root directory of an ISO image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			if path == "" {
				return fmt.Errorf("image path is required")
			}

			a.logger.Debug("inspecting image", "path", path)
			info, err := artifacts.Inspect(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "image:\t%s\n", info.Path)
			fmt.Fprintf(out, "label:\t%s\n", info.Label)
			fmt.Fprintf(out, "size:\t%d bytes\n", info.Size)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, entry := range info.Entries {
				kind := "file"
				if entry.Dir {
					kind = "dir"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\n", kind, entry.Name, entry.Size)
			}
			return tw.Flush()
		},
	}
}
