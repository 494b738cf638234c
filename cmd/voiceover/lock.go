package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/voiceover/internal/lock"
)

func newLockCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or clear the narration lock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show who holds the narration lock",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := loadApp(opts)
				if err != nil {
					return err
				}
				defer a.Close()

				st, err := a.lock.Status(cmd.Context())
				if err != nil {
					return err
				}
				printLockStatus(cmd.OutOrStdout(), st)
				return nil
			},
		},
		&cobra.Command{
			Use:   "break",
			Short: "Clear the narration lock regardless of holder",
			Long:  "Clear the narration lock regardless of holder. Only use this when the holder is known to be gone.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := loadApp(opts)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.lock.Break(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Narration lock cleared")
				return nil
			},
		},
	)
	return cmd
}

func printLockStatus(w io.Writer, st lock.Status) {
	switch {
	case st.Held:
		fmt.Fprintf(w, "held by %s since last touch %s ago\n", st.Holder, time.Since(st.TouchedAt).Round(time.Second))
	case st.Stale:
		fmt.Fprintf(w, "stale record from %s (touched %s ago), next narration will reclaim it\n",
			st.Holder, time.Since(st.TouchedAt).Round(time.Second))
	default:
		fmt.Fprintln(w, "free")
	}
}
