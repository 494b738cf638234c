// Package yandex synthesizes paragraphs with Yandex SpeechKit v3 over gRPC.
package yandex

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/segment"
	"github.com/nadzzz/voiceover/internal/tts"
)

// Name is the backend identifier.
const Name = "yandex"

// sampleRate of the LINEAR16 PCM requested from SpeechKit.
const sampleRate = 22050

// unitFunc synthesizes one unit and returns its raw PCM.
type unitFunc func(ctx context.Context, req *speechkit.UtteranceSynthesisRequest) ([]byte, error)

// Synthesizer implements tts.Adapter against SpeechKit.
type Synthesizer struct {
	cfg       config.YandexConfig
	segmenter segment.Segmenter
	conn      *grpc.ClientConn
	unit      unitFunc
}

// New dials SpeechKit. Units are produced by seg.
func New(cfg config.YandexConfig, seg segment.Segmenter) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("yandex api key is required")
	}
	if seg == nil {
		seg = segment.Default()
	}

	creds := credentials.NewTLS(&tls.Config{})
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("connecting to speechkit: %w", err)
	}

	s := &Synthesizer{cfg: cfg, segmenter: seg, conn: conn}
	s.unit = s.streamUnit(speechkit.NewSynthesizerClient(conn))
	return s, nil
}

// Name implements tts.Adapter.
func (s *Synthesizer) Name() string { return Name }

// Synthesize implements tts.Adapter.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (string, error) {
	units := s.segmenter.Segment(req.Text)
	if len(units) == 0 {
		return "", &tts.SynthesisError{Backend: Name, Message: "empty text for synthesis"}
	}
	diagnostic := strings.Join(tts.CheckUnits(units, req.Language), "\n")

	ctx = metadata.AppendToOutgoingContext(ctx,
		"authorization", "Api-Key "+s.cfg.APIKey,
		"x-folder-id", s.cfg.FolderID,
	)

	var pcm bytes.Buffer
	for i, unit := range units {
		data, err := s.unit(ctx, s.buildRequest(unit, req.Speed))
		if err != nil {
			return diagnostic, &tts.SynthesisError{
				Backend:    Name,
				Message:    fmt.Sprintf("unit %d of %d", i+1, len(units)),
				Diagnostic: diagnostic,
				Err:        err,
			}
		}
		pcm.Write(data)
	}

	slog.Debug("speechkit synthesized", "units", len(units), "pcm_bytes", pcm.Len(), "out", req.OutputPath)

	wav := tts.EncodeWAV(tts.Format{SampleRate: sampleRate, Channels: 1, Width: 2}, pcm.Bytes())
	if err := tts.WriteFile(req.OutputPath, wav); err != nil {
		return diagnostic, &tts.SynthesisError{Backend: Name, Message: "writing output", Diagnostic: diagnostic, Err: err}
	}
	return diagnostic, nil
}

func (s *Synthesizer) buildRequest(text string, speed float64) *speechkit.UtteranceSynthesisRequest {
	req := &speechkit.UtteranceSynthesisRequest{}
	req.SetModel(s.cfg.Model)
	req.SetText(text)

	voiceHint := &speechkit.Hints{}
	voiceHint.SetVoice(s.cfg.Voice)
	hints := []*speechkit.Hints{voiceHint}
	if speed > 0 {
		speedHint := &speechkit.Hints{}
		speedHint.SetSpeed(speed)
		hints = append(hints, speedHint)
	}
	req.SetHints(hints)

	raw := &speechkit.RawAudio{}
	raw.SetAudioEncoding(speechkit.RawAudio_LINEAR16_PCM)
	raw.SetSampleRateHertz(sampleRate)
	audioSpec := &speechkit.AudioFormatOptions{}
	audioSpec.SetRawAudio(raw)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(speechkit.UtteranceSynthesisRequest_LUFS)
	return req
}

// streamUnit reads the utterance stream until EOF and joins the audio chunks.
func (s *Synthesizer) streamUnit(client speechkit.SynthesizerClient) unitFunc {
	return func(ctx context.Context, req *speechkit.UtteranceSynthesisRequest) ([]byte, error) {
		stream, err := client.UtteranceSynthesis(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("starting synthesis: %w", err)
		}
		var pcm bytes.Buffer
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				return pcm.Bytes(), nil
			}
			if err != nil {
				return nil, fmt.Errorf("receiving audio: %w", err)
			}
			if chunk := resp.GetAudioChunk(); chunk != nil {
				pcm.Write(chunk.GetData())
			}
		}
	}
}

// Close closes the gRPC connection.
func (s *Synthesizer) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
