package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voiceover/internal/job"
	"github.com/nadzzz/voiceover/internal/jobs"
	"github.com/nadzzz/voiceover/internal/lock"
)

func TestNewRootCommand(t *testing.T) {
	cmd := newRootCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "voiceover", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"narrate", "sample", "voices", "lock", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestNarrateCommandFlags(t *testing.T) {
	cmd := newNarrateCommand(&rootOptions{})

	assert.True(t, cmd.HasAlias("n"))
	for _, flag := range []string{"language", "voice", "output", "name", "speed"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %q", flag)
	}
	assert.Error(t, cmd.Args(cmd, nil), "document argument is required")
}

func TestLockCommandHasSubcommands(t *testing.T) {
	cmd := newLockCommand(&rootOptions{})
	require.True(t, cmd.HasSubCommands())

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"status", "break"}, names)
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	assert.True(t, cmd.HasAlias("v"))
	assert.False(t, cmd.HasFlags())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.True(t, strings.HasPrefix(out.String(), "voiceover dev"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitBusy, exitCode(&exitError{code: exitBusy, err: jobs.ErrLockBusy}))
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "voiceover.yaml")
	body := "narration:\n" +
		"  output_base: " + filepath.Join(dir, "output") + "\n" +
		"  voices_dir: " + filepath.Join(dir, "voices") + "\n" +
		"lock:\n" +
		"  path: " + filepath.Join(dir, "voiceover.lock") + "\n" +
		"logging:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNarrateBusyExitsWithCode2(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	doc := filepath.Join(dir, "chapter.txt")
	voice := filepath.Join(dir, "ana.wav")
	require.NoError(t, os.WriteFile(doc, []byte("Hello.\n"), 0o644))
	require.NoError(t, os.WriteFile(voice, []byte("RIFF"), 0o644))

	holder := lock.NewFileLock(filepath.Join(dir, "voiceover.lock"), 10*time.Minute)
	ok, err := holder.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"narrate", doc, "--voice", voice, "--config", cfgPath})
	cmd.SetOut(&bytes.Buffer{})
	err = cmd.Execute()

	assert.ErrorIs(t, err, jobs.ErrLockBusy)
	assert.Equal(t, exitBusy, exitCode(err))
	assert.NoDirExists(t, filepath.Join(dir, "output"))
}

func TestLockStatusAndBreak(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	holder := lock.NewFileLock(filepath.Join(dir, "voiceover.lock"), 10*time.Minute)
	ok, err := holder.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"lock", "status", "--config", cfgPath})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "held by")

	out.Reset()
	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"lock", "break", "--config", cfgPath})
	require.NoError(t, cmd.Execute())
	assert.NoFileExists(t, filepath.Join(dir, "voiceover.lock"))
}

func TestVoicesCommandListsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ana.wav"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"voices", dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "ana.wav")
	assert.Contains(t, out.String(), "2 KB")
	assert.NotContains(t, out.String(), "notes.txt")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &job.Summary{
		Folder:     "/out/es_chapter",
		Total:      3,
		OK:         1,
		Flagged:    1,
		Failed:     1,
		ReportPath: "/out/es_chapter/paragraphs_with_limit_warnings.docx",
		Results: []job.ParagraphResult{
			{Index: 1, Status: job.StatusOK, OutputPath: "/out/es_chapter/audio_1.wav"},
			{Index: 2, Status: job.StatusFlagged, Reason: job.ReasonCapacity, OutputPath: "/out/es_chapter/audio_2__may_have_limit_warning.wav"},
			{Index: 3, Status: job.StatusFailed, Reason: job.ReasonSynthesis, OutputPath: "/out/es_chapter/audio_3.wav"},
		},
	})

	got := out.String()
	assert.Contains(t, got, "Narrated 3 paragraphs into /out/es_chapter")
	assert.Contains(t, got, "ok: 1  flagged: 1  failed: 1")
	assert.Contains(t, got, "#2 flagged (capacity)")
	assert.Contains(t, got, "#3 failed (synthesis)")
	assert.NotContains(t, got, "#1 ")
	assert.Contains(t, got, "paragraphs_with_limit_warnings.docx")
}
