// Package piper synthesizes paragraphs through a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Each paragraph is
// split into sentence units with the injected segmenter, every unit is sent as
// its own synthesize event, and the PCM of all units is joined into one WAV.
//
// Wyoming protocol format (per event):
//
//	{"type": ..., "data_length": N, "payload_length": M}\n
//	<N bytes of JSON data>
//	<M bytes of payload>
package piper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/segment"
	"github.com/nadzzz/voiceover/internal/tts"
)

// Name is the backend identifier.
const Name = "piper"

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"fr": "fr_FR-siwis-medium",
	"es": "es_ES-mls_10246-low",
	"de": "de_DE-thorsten-medium",
	"it": "it_IT-riccardo-x_low",
	"pt": "pt_BR-faber-medium",
	"nl": "nl_NL-mls-medium",
	"pl": "pl_PL-darkman-medium",
	"ru": "ru_RU-ruslan-medium",
	"ja": "ja_JP-amitaro-medium",
	"ko": "ko_KR-kss-x_low",
	"zh": "zh_CN-huayan-medium",
}

// Synthesizer implements tts.Adapter using the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // default host:port of the Piper Wyoming server
	endpoints map[string]string // language -> host:port for per-language Piper instances
	voices    map[string]string // language -> configured voice names
	segmenter segment.Segmenter
	dialer    net.Dialer
}

// New creates a Piper synthesizer from config. Units are produced by seg.
func New(cfg config.PiperConfig, seg segment.Segmenter) *Synthesizer {
	if seg == nil {
		seg = segment.Default()
	}

	cleanEndpoint := func(ep string) string {
		ep = strings.TrimPrefix(ep, "tcp://")
		ep = strings.TrimPrefix(ep, "http://")
		return ep
	}

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = cleanEndpoint(ep)
	}

	return &Synthesizer{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		voices:    cfg.Voices,
		segmenter: seg,
		dialer:    net.Dialer{Timeout: 10 * time.Second},
	}
}

// Name implements tts.Adapter.
func (s *Synthesizer) Name() string { return Name }

// voiceFor picks the Piper voice: a configured voice for the language wins,
// then the sample file's base name, then the stock voice for the language.
func (s *Synthesizer) voiceFor(req tts.Request) string {
	if v := s.voices[req.Language]; v != "" {
		return v
	}
	if req.VoicePath != "" {
		base := filepath.Base(req.VoicePath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	if v := defaultVoices[req.Language]; v != "" {
		return v
	}
	return defaultVoices["en"]
}

func (s *Synthesizer) endpointFor(language string) string {
	if ep := s.endpoints[language]; ep != "" {
		return ep
	}
	return s.endpoint
}

// Synthesize implements tts.Adapter.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (string, error) {
	units := s.segmenter.Segment(req.Text)
	if len(units) == 0 {
		return "", &tts.SynthesisError{Backend: Name, Message: "empty text for synthesis"}
	}

	warnings := tts.CheckUnits(units, req.Language)
	diagnostic := strings.Join(warnings, "\n")

	endpoint := s.endpointFor(req.Language)
	if endpoint == "" {
		return diagnostic, &tts.SynthesisError{
			Backend:    Name,
			Message:    fmt.Sprintf("no piper endpoint configured for language %q", req.Language),
			Diagnostic: diagnostic,
		}
	}
	voice := s.voiceFor(req)

	slog.Debug("piper synthesize", "units", len(units), "voice", voice, "language", req.Language, "endpoint", endpoint)

	var (
		pcm    bytes.Buffer
		format tts.Format
	)
	for i, unit := range units {
		f, err := s.synthesizeUnit(ctx, endpoint, voice, unit, &pcm)
		if err != nil {
			return diagnostic, &tts.SynthesisError{
				Backend:    Name,
				Message:    fmt.Sprintf("unit %d of %d", i+1, len(units)),
				Diagnostic: diagnostic,
				Err:        err,
			}
		}
		format = f
	}

	wav := tts.EncodeWAV(format, pcm.Bytes())
	if err := tts.WriteFile(req.OutputPath, wav); err != nil {
		return diagnostic, &tts.SynthesisError{Backend: Name, Message: "writing output", Diagnostic: diagnostic, Err: err}
	}
	return diagnostic, nil
}

// synthesizeUnit sends one synthesize event and appends the returned PCM to pcm.
func (s *Synthesizer) synthesizeUnit(ctx context.Context, endpoint, voice, text string, pcm *bytes.Buffer) (tts.Format, error) {
	format := tts.DefaultFormat

	conn, err := s.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return format, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(2 * time.Minute))
	}
	// Unblock reads when the context is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	synth := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, synth, nil); err != nil {
		return format, fmt.Errorf("sending synthesize event: %w", err)
	}

	// audio-start → audio-chunk* → audio-stop
	r := bufio.NewReader(conn)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			if ctx.Err() != nil {
				return format, ctx.Err()
			}
			return format, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			if rate, ok := evt.Data["rate"].(float64); ok {
				format.SampleRate = int(rate)
			}
			if ch, ok := evt.Data["channels"].(float64); ok {
				format.Channels = int(ch)
			}
			if w, ok := evt.Data["width"].(float64); ok {
				format.Width = int(w)
			}
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			return format, nil
		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return format, fmt.Errorf("piper error: %s", msg)
		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per unit.
func (s *Synthesizer) Close() error { return nil }
