package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/narrate"
)

func newNarrateCommand(opts *rootOptions) *cobra.Command {
	var req job.Request

	cmd := &cobra.Command{
		Use:     "narrate <document>",
		Aliases: []string{"n"},
		Short:   "Narrate a document into one clip per paragraph",
		Example: `voiceover narrate chapter.docx --voice ana --language es`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.DocumentPath = args[0]

			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			summary, err := a.coord.Narrate(ctx, req)
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			switch {
			case errors.Is(err, jobs.ErrLockBusy):
				return &exitError{code: exitBusy, err: err}
			case err != nil:
				return &exitError{code: exitFailure, err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Language, "language", "l", "", "narration language (ISO-639-1, default from config)")
	cmd.Flags().StringVarP(&req.VoicePath, "voice", "v", "", "voice sample path or name in the voices directory")
	cmd.Flags().StringVarP(&req.OutputBase, "output", "o", "", "base output folder (default from config)")
	cmd.Flags().StringVarP(&req.DisplayName, "name", "n", "", "name for the output folder (default: document file name)")
	cmd.Flags().Float64Var(&req.Speed, "speed", 0, "speaking rate (default from config)")
	_ = cmd.MarkFlagRequired("voice")

	return cmd
}

func printSummary(w io.Writer, s *job.Summary) {
	fmt.Fprintf(w, "Narrated %d paragraphs into %s\n", s.Total, s.Folder)
	fmt.Fprintf(w, "  ok: %d  flagged: %d  failed: %d  (%s)\n", s.OK, s.Flagged, s.Failed, s.Duration.Round(time.Millisecond))
	for _, r := range s.Results {
		if r.Status != job.StatusOK {
			fmt.Fprintf(w, "  %s\n", narrate.String(r))
		}
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "Paragraphs with limit warnings: %s\n", s.ReportPath)
	}
}
