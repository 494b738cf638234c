// Package command synthesizes paragraphs by running an external program,
// typically the Coqui TTS CLI with an XTTS model.
//
// The program's stdout and stderr together form the diagnostic, so engine
// warnings such as the XTTS character-limit notice reach the pipeline as is.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nadzzz/voiceover/internal/segment"
	"github.com/nadzzz/voiceover/internal/tts"
)

// Name is the backend identifier.
const Name = "command"

// result is a finished process.
type result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runner abstracts process execution for testability.
type runner interface {
	Run(ctx context.Context, name string, args ...string) (result, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (execRunner) Run(ctx context.Context, name string, args ...string) (result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

// Options configures a Synthesizer.
type Options struct {
	Path   string
	Args   []string
	Model  string
	Device string
}

// Synthesizer implements tts.Adapter by running an external program.
//
// When Args reference {text_file} the program runs once per paragraph and
// reads one sentence unit per line from that file. Otherwise it runs once
// per unit with {text} bound to the unit, and the unit clips are joined
// into the paragraph's output file. Either way the engine never sees two
// units as one sentence.
type Synthesizer struct {
	opts      Options
	batch     bool
	segmenter segment.Segmenter
	runner    runner
}

// New creates a command synthesizer. Units are produced by seg.
func New(opts Options, seg segment.Segmenter) (*Synthesizer, error) {
	if opts.Path == "" {
		return nil, errors.New("command path is required")
	}
	if seg == nil {
		seg = segment.Default()
	}
	if !references(opts.Args, "{speed}") {
		slog.Debug("synthesis command takes no speaking rate, engine default applies", "path", opts.Path)
	}
	return &Synthesizer{
		opts:      opts,
		batch:     references(opts.Args, "{text_file}"),
		segmenter: seg,
		runner:    execRunner{},
	}, nil
}

// Name implements tts.Adapter.
func (s *Synthesizer) Name() string { return Name }

// Synthesize implements tts.Adapter.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (string, error) {
	units := s.segmenter.Segment(req.Text)
	if len(units) == 0 {
		return "", &tts.SynthesisError{Backend: Name, Message: "empty text for synthesis"}
	}
	if s.batch {
		return s.synthesizeFile(ctx, req, units)
	}
	if len(units) == 1 {
		diagnostic, err := s.run(ctx, req, units[0], "", req.OutputPath, "")
		if err != nil {
			return diagnostic, err
		}
		_, err = readClip(req.OutputPath, diagnostic)
		return diagnostic, err
	}
	return s.synthesizeUnits(ctx, req, units)
}

// synthesizeFile runs the program once with every unit in {text_file}.
func (s *Synthesizer) synthesizeFile(ctx context.Context, req tts.Request, units []string) (string, error) {
	textFile, err := writeUnits(units)
	if err != nil {
		return "", &tts.SynthesisError{Backend: Name, Message: "preparing input", Err: err}
	}
	defer os.Remove(textFile)

	diagnostic, err := s.run(ctx, req, strings.Join(units, "\n"), textFile, req.OutputPath, "")
	if err != nil {
		return diagnostic, err
	}
	_, err = readClip(req.OutputPath, diagnostic)
	return diagnostic, err
}

// synthesizeUnits runs the program once per unit and joins the clips.
func (s *Synthesizer) synthesizeUnits(ctx context.Context, req tts.Request, units []string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Dir(req.OutputPath), ".units-*")
	if err != nil {
		return "", &tts.SynthesisError{Backend: Name, Message: "preparing unit folder", Err: err}
	}
	defer os.RemoveAll(dir)

	var (
		outputs []string
		clips   = make([][]byte, 0, len(units))
	)
	for i, unit := range units {
		label := fmt.Sprintf("unit %d of %d: ", i+1, len(units))
		out := filepath.Join(dir, fmt.Sprintf("unit_%d.wav", i+1))

		output, err := s.run(ctx, req, unit, "", out, label)
		if output != "" {
			outputs = append(outputs, output)
		}
		diagnostic := strings.Join(outputs, "\n")
		if err != nil {
			var synthErr *tts.SynthesisError
			if errors.As(err, &synthErr) {
				synthErr.Diagnostic = diagnostic
			}
			return diagnostic, err
		}
		clip, err := readClip(out, diagnostic)
		if err != nil {
			return diagnostic, err
		}
		clips = append(clips, clip)
	}

	diagnostic := strings.Join(outputs, "\n")
	wav, err := tts.JoinWAV(clips...)
	if err != nil {
		return diagnostic, &tts.SynthesisError{Backend: Name, Message: "joining unit clips", Diagnostic: diagnostic, Err: err}
	}
	if err := tts.WriteFile(req.OutputPath, wav); err != nil {
		return diagnostic, &tts.SynthesisError{Backend: Name, Message: "writing output", Diagnostic: diagnostic, Err: err}
	}
	return diagnostic, nil
}

// run executes the program once. The returned diagnostic is the trimmed
// stdout and stderr of that run.
func (s *Synthesizer) run(ctx context.Context, req tts.Request, text, textFile, out, label string) (string, error) {
	args := expand(s.opts.Args, map[string]string{
		"{text}":      text,
		"{text_file}": textFile,
		"{out}":       out,
		"{lang}":      req.Language,
		"{voice}":     req.VoicePath,
		"{speed}":     strconv.FormatFloat(req.Speed, 'f', -1, 64),
		"{model}":     s.opts.Model,
		"{device}":    s.opts.Device,
	})

	slog.Debug("running synthesis command", "path", s.opts.Path, "out", out)

	res, runErr := s.runner.Run(ctx, s.opts.Path, args...)
	diagnostic := joinOutput(res.Stdout, res.Stderr)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = ctxErr
		}
		return diagnostic, &tts.SynthesisError{
			Backend:    Name,
			Message:    fmt.Sprintf("%sexit code %d", label, res.ExitCode),
			Diagnostic: diagnostic,
			Err:        runErr,
		}
	}
	return diagnostic, nil
}

// readClip returns the audio the program wrote to path.
func readClip(path, diagnostic string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil, &tts.SynthesisError{
			Backend:    Name,
			Message:    "no audio written to " + path,
			Diagnostic: diagnostic,
			Err:        err,
		}
	}
	return data, nil
}

// Close is a no-op; every run is its own process.
func (s *Synthesizer) Close() error { return nil }

// expand substitutes placeholders in every argument.
func expand(args []string, values map[string]string) []string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

func references(args []string, placeholder string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}

// writeUnits stores one unit per line in a temporary file.
func writeUnits(units []string) (string, error) {
	f, err := os.CreateTemp("", "voiceover-text-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(strings.Join(units, "\n") + "\n"); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func joinOutput(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}
