package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/voices"
)

func newVoicesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices [dir]",
		Short: "List voice samples",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := config.Load(opts.configFile)
				if err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
				dir = cfg.Narration.VoicesDir
			}

			list, err := voices.Catalog{Dir: dir}.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No voice samples in %s\n", dir)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tPATH")
			for _, v := range list {
				fmt.Fprintf(tw, "%s\t%d KB\t%s\n", v.Name, v.SizeBytes/1024, v.Path)
			}
			return tw.Flush()
		},
	}
	return cmd
}
