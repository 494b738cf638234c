package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/segment"
	"github.com/nadzzz/voiceover/internal/tts"
)

// fakeRunner simulates command execution.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (result, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (result, error) {
	if f.run == nil {
		return result{}, nil
	}
	return f.run(ctx, name, args...)
}

func newTestSynthesizer(t *testing.T, r runner) *Synthesizer {
	t.Helper()
	s, err := New(Options{
		Path:   "tts",
		Args:   []string{"--text_file", "{text_file}", "--out_path", "{out}", "--language_idx", "{lang}", "--speaker_wav", "{voice}", "--speed", "{speed}", "--model_name", "{model}", "--device", "{device}"},
		Model:  "xtts_v2",
		Device: "cuda",
	}, segment.WithTrailingDotPolicy(segment.Default(), true))
	require.NoError(t, err)
	s.runner = r
	return s
}

func argAfter(args []string, flag string) string {
	for i := range args[:len(args)-1] {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestSynthesizeSubstitutesPlaceholders(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audio_1.wav")
	var (
		gotName  string
		gotArgs  []string
		gotLines []string
	)
	s := newTestSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			gotName, gotArgs = name, args
			data, err := os.ReadFile(argAfter(args, "--text_file"))
			require.NoError(t, err)
			gotLines = strings.Split(strings.TrimSpace(string(data)), "\n")
			require.NoError(t, os.WriteFile(argAfter(args, "--out_path"), []byte("RIFF"), 0o644))
			return result{Stdout: " > Done", Stderr: ""}, nil
		},
	})

	diag, err := s.Synthesize(context.Background(), tts.Request{
		Text:       "Hola,. Adiós,.",
		OutputPath: out,
		Language:   "es",
		VoicePath:  "/voices/ana.wav",
		Speed:      0.85,
	})
	require.NoError(t, err)
	assert.Equal(t, "> Done", diag)
	assert.Equal(t, "tts", gotName)
	assert.Equal(t, out, argAfter(gotArgs, "--out_path"))
	assert.Equal(t, "es", argAfter(gotArgs, "--language_idx"))
	assert.Equal(t, "/voices/ana.wav", argAfter(gotArgs, "--speaker_wav"))
	assert.Equal(t, "0.85", argAfter(gotArgs, "--speed"))
	assert.Equal(t, "xtts_v2", argAfter(gotArgs, "--model_name"))
	assert.Equal(t, "cuda", argAfter(gotArgs, "--device"))
	assert.Equal(t, []string{"Hola,", "Adiós,"}, gotLines)
}

func newDefaultSynthesizer(t *testing.T, r runner) *Synthesizer {
	t.Helper()
	s, err := New(Options{
		Path:   "tts",
		Args:   config.DefaultCommandArgs,
		Model:  "tts_models/multilingual/multi-dataset/xtts_v2",
		Device: "cuda",
	}, segment.WithTrailingDotPolicy(segment.Default(), true))
	require.NoError(t, err)
	s.runner = r
	return s
}

func TestDefaultArgsRunOncePerUnit(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "audio_1.wav")
	var calls [][]string
	s := newDefaultSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			calls = append(calls, args)
			pcm := []byte{byte(len(calls)), byte(len(calls))}
			require.NoError(t, os.WriteFile(argAfter(args, "--out_path"), tts.EncodeWAV(tts.DefaultFormat, pcm), 0o644))
			return result{Stdout: " > Text splitted to sentences."}, nil
		},
	})

	diag, err := s.Synthesize(context.Background(), tts.Request{
		Text:       "First sentence here,. Second one follows,.",
		OutputPath: out,
		Language:   "en",
		VoicePath:  "/voices/ana.wav",
		Speed:      0.85,
	})
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, "First sentence here,", argAfter(calls[0], "--text"))
	assert.Equal(t, "Second one follows,", argAfter(calls[1], "--text"))
	for _, args := range calls {
		assert.Equal(t, "cuda", argAfter(args, "--device"))
		assert.Equal(t, "en", argAfter(args, "--language_idx"))
		assert.Equal(t, "/voices/ana.wav", argAfter(args, "--speaker_wav"))
		assert.NotEqual(t, out, argAfter(args, "--out_path"), "units are written to scratch files")
	}
	assert.Equal(t, 2, strings.Count(diag, "splitted"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	_, pcm, err := tts.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 2, 2}, pcm)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "scratch unit clips are removed")
	assert.Equal(t, "audio_1.wav", entries[0].Name())
}

func TestDefaultArgsSingleUnitWritesOutputDirectly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audio_1.wav")
	var gotOut, gotText string
	s := newDefaultSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			gotOut, gotText = argAfter(args, "--out_path"), argAfter(args, "--text")
			require.NoError(t, os.WriteFile(gotOut, tts.EncodeWAV(tts.DefaultFormat, []byte{0, 0}), 0o644))
			return result{}, nil
		},
	})

	_, err := s.Synthesize(context.Background(), tts.Request{Text: "Only one,.", OutputPath: out, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, out, gotOut)
	assert.Equal(t, "Only one,", gotText)
}

func TestDefaultArgsUnitFailureKeepsEarlierDiagnostics(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audio_1.wav")
	calls := 0
	s := newDefaultSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			calls++
			if calls == 2 {
				return result{Stderr: "AssertionError: The text length exceeds the character limit", ExitCode: 1}, errors.New("exit status 1")
			}
			require.NoError(t, os.WriteFile(argAfter(args, "--out_path"), tts.EncodeWAV(tts.DefaultFormat, []byte{0, 0}), 0o644))
			return result{Stdout: " > unit one ok"}, nil
		},
	})

	diag, err := s.Synthesize(context.Background(), tts.Request{Text: "One,. Two,. Three,.", OutputPath: out, Language: "en"})
	var synthErr *tts.SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, "unit 2 of 3: exit code 1", synthErr.Message)
	assert.Contains(t, diag, "unit one ok")
	assert.Contains(t, diag, "exceeds the character limit")
	assert.Equal(t, diag, synthErr.Diagnostic)
	assert.Equal(t, 2, calls, "later units are not attempted")
	assert.NoFileExists(t, out)
}

func TestSynthesizePassesWarningThrough(t *testing.T) {
	warning := tts.LimitWarning(239, "es")
	out := filepath.Join(t.TempDir(), "audio_1.wav")
	s := newTestSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			require.NoError(t, os.WriteFile(out, []byte("RIFF"), 0o644))
			return result{Stdout: " > Text splitted to sentences.", Stderr: warning}, nil
		},
	})

	diag, err := s.Synthesize(context.Background(), tts.Request{Text: "Texto.", OutputPath: out, Language: "es"})
	require.NoError(t, err)
	assert.Contains(t, diag, warning)
	assert.Contains(t, diag, "splitted")
}

func TestSynthesizeFailureCarriesDiagnostic(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audio_1.wav")
	s := newTestSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			return result{Stderr: "AssertionError: The text length exceeds the character limit", ExitCode: 1}, errors.New("exit status 1")
		},
	})

	diag, err := s.Synthesize(context.Background(), tts.Request{Text: "Long.", OutputPath: out, Language: "en"})
	var synthErr *tts.SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, "exit code 1", synthErr.Message)
	assert.Contains(t, diag, "exceeds the character limit")
	assert.Equal(t, diag, synthErr.Diagnostic)
}

func TestSynthesizeMissingOutput(t *testing.T) {
	s := newTestSynthesizer(t, &fakeRunner{})

	_, err := s.Synthesize(context.Background(), tts.Request{
		Text:       "Nothing written.",
		OutputPath: filepath.Join(t.TempDir(), "audio_1.wav"),
		Language:   "en",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio written")
}

func TestSynthesizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSynthesizer(t, &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (result, error) {
			cancel()
			return result{ExitCode: -1}, errors.New("signal: killed")
		},
	})

	_, err := s.Synthesize(ctx, tts.Request{Text: "Slow.", OutputPath: filepath.Join(t.TempDir(), "a.wav")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Options{}, nil)
	assert.Error(t, err)
}
