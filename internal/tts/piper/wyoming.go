package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"
)

// protocolVersion is announced in every event header we send.
const protocolVersion = "1.5.3"

// maxEventBytes bounds the data and payload sections of a single event.
const maxEventBytes = 16 << 20

// wyomingEvent is one decoded event. Data holds the merged inline and
// trailing data sections.
type wyomingEvent struct {
	Type string
	Data map[string]any
}

// eventHeader is the JSON line that opens every event. Older servers put
// the data inline; newer ones send it as a separate section of DataLength
// bytes after the header.
type eventHeader struct {
	Type          string         `json:"type"`
	Version       string         `json:"version,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

// writeEvent encodes evt as a header line, a data section and the payload.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	var data []byte
	if len(evt.Data) > 0 {
		var err error
		if data, err = json.Marshal(evt.Data); err != nil {
			return fmt.Errorf("encoding %s data: %w", evt.Type, err)
		}
	}

	header, err := json.Marshal(eventHeader{
		Type:          evt.Type,
		Version:       protocolVersion,
		DataLength:    len(data),
		PayloadLength: len(payload),
	})
	if err != nil {
		return fmt.Errorf("encoding %s header: %w", evt.Type, err)
	}

	bw := bufio.NewWriter(w)
	bw.Write(header)
	bw.WriteByte('\n')
	bw.Write(data)
	bw.Write(payload)
	return bw.Flush()
}

// readEvent decodes the next event from r.
func readEvent(r *bufio.Reader) (*wyomingEvent, []byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading event header: %w", err)
	}

	var h eventHeader
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, nil, fmt.Errorf("decoding event header %q: %w", line, err)
	}
	if h.Type == "" {
		return nil, nil, fmt.Errorf("event header without type: %q", line)
	}
	if h.DataLength < 0 || h.PayloadLength < 0 || h.DataLength+h.PayloadLength > maxEventBytes {
		return nil, nil, fmt.Errorf("%s event: invalid section lengths %d/%d", h.Type, h.DataLength, h.PayloadLength)
	}

	evt := &wyomingEvent{Type: h.Type, Data: h.Data}
	if h.DataLength > 0 {
		raw := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, nil, fmt.Errorf("reading %s data: %w", h.Type, err)
		}
		var extra map[string]any
		if err := json.Unmarshal(raw, &extra); err != nil {
			return nil, nil, fmt.Errorf("decoding %s data: %w", h.Type, err)
		}
		if evt.Data == nil {
			evt.Data = extra
		} else {
			maps.Copy(evt.Data, extra)
		}
	}

	var payload []byte
	if h.PayloadLength > 0 {
		payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading %s payload: %w", h.Type, err)
		}
	}
	return evt, payload, nil
}
