// Package backend builds synthesis adapters from configuration.
package backend

import (
	"fmt"

	"github.com/nadzzz/voiceover/internal/config"
	"github.com/nadzzz/voiceover/internal/segment"
	"github.com/nadzzz/voiceover/internal/tts"
	"github.com/nadzzz/voiceover/internal/tts/command"
	"github.com/nadzzz/voiceover/internal/tts/piper"
	"github.com/nadzzz/voiceover/internal/tts/yandex"
)

// New creates the adapter cfg.Backend names. Sentence units are produced by seg.
func New(cfg config.TTSConfig, seg segment.Segmenter) (tts.Adapter, error) {
	switch cfg.Backend {
	case command.Name, "":
		args := cfg.Command.Args
		if len(args) == 0 {
			args = config.DefaultCommandArgs
		}
		return command.New(command.Options{
			Path:   cfg.Command.Path,
			Args:   args,
			Model:  cfg.Model,
			Device: cfg.Device,
		}, seg)
	case piper.Name:
		return piper.New(cfg.Piper, seg), nil
	case yandex.Name:
		return yandex.New(cfg.Yandex, seg)
	default:
		return nil, fmt.Errorf("unknown tts backend %q", cfg.Backend)
	}
}

// KeyFor returns the shared-handle key for cfg and a voice sample.
func KeyFor(cfg config.TTSConfig, voicePath string) tts.Key {
	backend := cfg.Backend
	if backend == "" {
		backend = command.Name
	}
	return tts.Key{
		Backend:      backend,
		Model:        cfg.Model,
		Device:       cfg.Device,
		Voice:        voicePath,
		TrailingDots: cfg.RemoveTrailingDots,
	}
}

// Factory returns a tts.Factory that applies the key's trailing-dot policy on
// top of base segmentation and builds the configured backend.
func Factory(cfg config.TTSConfig, base segment.Segmenter) tts.Factory {
	return func(key tts.Key) (tts.Adapter, error) {
		c := cfg
		c.Backend = key.Backend
		c.Model = key.Model
		c.Device = key.Device
		c.RemoveTrailingDots = key.TrailingDots
		return New(c, segment.WithTrailingDotPolicy(base, key.TrailingDots))
	}
}
