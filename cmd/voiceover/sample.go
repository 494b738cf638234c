package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nadzzz/voiceover/internal/jobs"
)

func newSampleCommand(opts *rootOptions) *cobra.Command {
	req := jobs.SampleRequest{Text: jobs.DefaultSampleText}

	cmd := &cobra.Command{
		Use:     "sample",
		Short:   "Speak a short text with the selected voice",
		Example: `voiceover sample --voice ana --out sample.wav`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.coord.Sample(cmd.Context(), req)
			if errors.Is(err, jobs.ErrLockBusy) {
				return &exitError{code: exitBusy, err: err}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample written to %s\n", res.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Text, "text", "t", req.Text, "text to speak")
	cmd.Flags().StringVarP(&req.VoicePath, "voice", "v", "", "voice sample path or name in the voices directory")
	cmd.Flags().StringVarP(&req.Language, "language", "l", "", "language (default from config)")
	cmd.Flags().StringVar(&req.OutputPath, "out", "sample.wav", "where to write the clip")
	_ = cmd.MarkFlagRequired("voice")

	return cmd
}
