package tts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Format describes little-endian integer PCM.
type Format struct {
	SampleRate int
	Channels   int
	Width      int // bytes per sample
}

// DefaultFormat is 22.05 kHz mono 16-bit, what the supported engines emit.
var DefaultFormat = Format{SampleRate: 22050, Channels: 1, Width: 2}

const wavHeaderSize = 44

// EncodeWAV wraps pcm in a canonical RIFF/WAVE container.
func EncodeWAV(f Format, pcm []byte) []byte {
	out := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(wavHeaderSize-8+len(pcm)))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 1) // integer PCM
	le.PutUint16(out[22:], uint16(f.Channels))
	le.PutUint32(out[24:], uint32(f.SampleRate))
	le.PutUint32(out[28:], uint32(f.SampleRate*f.Channels*f.Width))
	le.PutUint16(out[32:], uint16(f.Channels*f.Width))
	le.PutUint16(out[34:], uint16(f.Width*8))

	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(len(pcm)))
	return append(out, pcm...)
}

// DecodeWAV returns the format and sample data of an integer PCM WAV file.
// Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, errors.New("not a RIFF/WAVE file")
	}
	le := binary.LittleEndian

	var (
		f      Format
		hasFmt bool
	)
	for rest := data[12:]; len(rest) >= 8; {
		id := string(rest[0:4])
		size := int(le.Uint32(rest[4:8]))
		body := rest[8:]
		if size > len(body) {
			if id != "data" {
				return Format{}, nil, fmt.Errorf("truncated %q chunk", id)
			}
			// Streaming writers sometimes leave the data size unset.
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, errors.New("short fmt chunk")
			}
			if tag := le.Uint16(body[0:2]); tag != 1 && tag != 0xFFFE {
				return Format{}, nil, fmt.Errorf("unsupported wav encoding %d", tag)
			}
			f = Format{
				Channels:   int(le.Uint16(body[2:4])),
				SampleRate: int(le.Uint32(body[4:8])),
				Width:      int(le.Uint16(body[14:16])) / 8,
			}
			hasFmt = true
		case "data":
			if !hasFmt {
				return Format{}, nil, errors.New("data chunk before fmt chunk")
			}
			return f, body[:size], nil
		}

		// Chunks are padded to an even size.
		next := 8 + size + size%2
		if next > len(rest) {
			break
		}
		rest = rest[next:]
	}
	return Format{}, nil, errors.New("no data chunk")
}

// JoinWAV concatenates WAV clips that share one format.
func JoinWAV(clips ...[]byte) ([]byte, error) {
	if len(clips) == 0 {
		return nil, errors.New("no clips to join")
	}
	var (
		format Format
		pcm    []byte
	)
	for i, clip := range clips {
		f, samples, err := DecodeWAV(clip)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", i+1, err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return nil, fmt.Errorf("clip %d: format %+v differs from %+v", i+1, f, format)
		}
		pcm = append(pcm, samples...)
	}
	return EncodeWAV(format, pcm), nil
}

// WriteFile writes data to path through a temporary sibling so a reader
// never sees a half-written clip.
func WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".clip-*.wav")
	if err != nil {
		return fmt.Errorf("creating audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing audio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storing audio file: %w", err)
	}
	return nil
}
