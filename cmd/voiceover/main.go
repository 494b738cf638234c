// Voiceover narrates documents into one audio clip per paragraph.
//
// Usage:
//
//	voiceover narrate chapter.docx --voice ana --language es
//	voiceover serve --config /path/to/voiceover.yaml
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitBusy    = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "voiceover",
		Short:         "Narrate documents paragraph by paragraph",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config file (e.g. configs/voiceover.yaml)")

	cmd.AddCommand(
		newNarrateCommand(opts),
		newSampleCommand(opts),
		newVoicesCommand(opts),
		newLockCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// exitCode maps a command error onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
