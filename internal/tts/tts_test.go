package tts

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name   string
	closed bool
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Synthesize(ctx context.Context, req Request) (string, error) {
	return "", nil
}
func (s *stubAdapter) Close() error { s.closed = true; return nil }

func TestSharedReusesAndRebuilds(t *testing.T) {
	var built []*stubAdapter
	shared := NewShared(func(k Key) (Adapter, error) {
		a := &stubAdapter{name: k.Voice}
		built = append(built, a)
		return a, nil
	})

	k1 := Key{Backend: "command", Model: "xtts", Voice: "ana.wav", TrailingDots: true}
	first, err := shared.Get(k1)
	require.NoError(t, err)
	again, err := shared.Get(k1)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Len(t, built, 1)

	k2 := k1
	k2.Voice = "bruno.wav"
	second, err := shared.Get(k2)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, built[0].closed, "the adapter built for the old voice is closed")

	shared.Invalidate()
	assert.True(t, built[1].closed)
	third, err := shared.Get(k2)
	require.NoError(t, err)
	assert.NotSame(t, second, third)
	assert.Len(t, built, 3)

	require.NoError(t, shared.Close())
	assert.True(t, built[2].closed)
}

func TestSharedFactoryError(t *testing.T) {
	shared := NewShared(func(k Key) (Adapter, error) { return nil, errors.New("no gpu") })

	_, err := shared.Get(Key{Backend: "command"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no gpu")
}

func TestCheckUnits(t *testing.T) {
	long := strings.Repeat("a", CharLimit("pt")+1)

	warnings := CheckUnits([]string{"short", long}, "pt")
	require.Len(t, warnings, 1)
	assert.Contains(t, strings.ToLower(warnings[0]), "exceeds the character limit of 203")

	assert.Empty(t, CheckUnits([]string{long}, "fr"))
	assert.Equal(t, DefaultCharLimit, CharLimit("xx"))
}

func TestSynthesisErrorUnwrap(t *testing.T) {
	base := errors.New("exit status 1")
	err := &SynthesisError{Backend: "command", Message: "engine failed", Err: base}

	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "command: engine failed: exit status 1", err.Error())
}

func TestEncodeWAVAndWriteFile(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := EncodeWAV(DefaultFormat, pcm)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.EqualValues(t, 22050, binary.LittleEndian.Uint32(wav[24:28]))
	assert.EqualValues(t, len(pcm), binary.LittleEndian.Uint32(wav[40:44]))

	path := filepath.Join(t.TempDir(), "audio_1.wav")
	require.NoError(t, WriteFile(path, wav))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

func TestDecodeWAVSkipsExtraChunks(t *testing.T) {
	wav := EncodeWAV(Format{SampleRate: 24000, Channels: 1, Width: 2}, []byte{9, 8, 7, 6})
	// Insert an odd-sized LIST chunk between fmt and data, as Coqui's writer may.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	withList := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	f, pcm, err := DecodeWAV(withList)
	require.NoError(t, err)
	assert.Equal(t, Format{SampleRate: 24000, Channels: 1, Width: 2}, f)
	assert.Equal(t, []byte{9, 8, 7, 6}, pcm)

	_, _, err = DecodeWAV([]byte("not audio"))
	assert.Error(t, err)
}

func TestJoinWAV(t *testing.T) {
	a := EncodeWAV(DefaultFormat, []byte{1, 2})
	b := EncodeWAV(DefaultFormat, []byte{3, 4, 5, 6})

	joined, err := JoinWAV(a, b)
	require.NoError(t, err)
	f, pcm, err := DecodeWAV(joined)
	require.NoError(t, err)
	assert.Equal(t, DefaultFormat, f)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, pcm)

	_, err = JoinWAV(a, EncodeWAV(Format{SampleRate: 16000, Channels: 1, Width: 2}, []byte{0, 0}))
	assert.ErrorContains(t, err, "clip 2")
}
