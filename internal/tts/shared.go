package tts

import (
	"fmt"
	"log/slog"
	"sync"
)

// Key identifies the configuration an adapter instance was built for. Two
// requests with equal keys may share an instance; any difference (including
// the voice) requires a new one.
type Key struct {
	Backend      string
	Model        string
	Device       string
	Voice        string
	TrailingDots bool
}

// Factory builds an adapter for a key.
type Factory func(Key) (Adapter, error)

// Shared holds the one expensive adapter instance a process uses across jobs.
type Shared struct {
	factory Factory

	mu      sync.Mutex
	key     Key
	adapter Adapter
}

// NewShared returns an empty handle that builds adapters with factory.
func NewShared(factory Factory) *Shared {
	return &Shared{factory: factory}
}

// Get returns the cached adapter when key matches the one it was built for.
// Otherwise the cached adapter is closed and a new one is constructed.
func (s *Shared) Get(key Key) (Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adapter != nil && s.key == key {
		return s.adapter, nil
	}
	if s.adapter != nil {
		slog.Info("synthesis configuration changed, rebuilding engine",
			"backend", key.Backend, "model", key.Model, "voice", key.Voice)
		s.closeLocked()
	}

	adapter, err := s.factory(key)
	if err != nil {
		return nil, fmt.Errorf("building %s synthesizer: %w", key.Backend, err)
	}
	s.adapter = adapter
	s.key = key
	return adapter, nil
}

// Invalidate drops the cached adapter so the next Get rebuilds it.
func (s *Shared) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Close releases the cached adapter.
func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return nil
	}
	err := s.adapter.Close()
	s.adapter = nil
	s.key = Key{}
	return err
}

func (s *Shared) closeLocked() {
	if s.adapter == nil {
		return
	}
	if err := s.adapter.Close(); err != nil {
		slog.Warn("closing synthesizer failed", "backend", s.adapter.Name(), "error", err)
	}
	s.adapter = nil
	s.key = Key{}
}
