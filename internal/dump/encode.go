// Package dump turns an output recording into deterministic bytes and
// manages the on-disk golden dump files those bytes are compared
// against.
package dump

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/fakes"
)

// SampleRecord is the dumped form of one sample. Payload bytes are
// recorded as length plus sha256 so dumps stay small while still
// pinning content byte-for-byte.
type SampleRecord struct {
	TimeUs int64  `json:"timeUs"`
	Flags  uint32 `json:"flags"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

// TrackRecord is the dumped form of one track sink.
type TrackRecord struct {
	ID      int            `json:"id"`
	Format  *FormatRecord  `json:"format,omitempty"`
	Samples []SampleRecord `json:"samples"`
}

// FormatRecord is the dumped form of a track format. Zero fields are
// omitted.
type FormatRecord struct {
	ID           string `json:"id,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	SampleRate   int    `json:"sampleRate,omitempty"`
	ChannelCount int    `json:"channelCount,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	DurationUs   int64  `json:"durationUs,omitempty"`
	InitDataSHA  string `json:"initDataSha256,omitempty"`
}

// SeekMapRecord is the dumped form of a seek map.
type SeekMapRecord struct {
	Seekable   bool  `json:"seekable"`
	DurationUs int64 `json:"durationUs"`
}

// Recording is the structural snapshot of a fakes.Output that golden
// comparison operates on.
type Recording struct {
	TracksEnded bool           `json:"tracksEnded"`
	SeekMap     *SeekMapRecord `json:"seekMap,omitempty"`
	Tracks      []TrackRecord  `json:"tracks"`
}

// Snapshot captures the current state of an output recording. Tracks
// appear in first-seen order; identity of the recorder is not
// retained.
func Snapshot(out *fakes.Output) *Recording {
	rec := &Recording{
		TracksEnded: out.TracksEnded,
		Tracks:      make([]TrackRecord, 0, out.TrackCount()),
	}
	if out.SeekMap != nil {
		rec.SeekMap = &SeekMapRecord{
			Seekable:   out.SeekMap.IsSeekable(),
			DurationUs: out.SeekMap.DurationUs(),
		}
	}
	for i := 0; i < out.TrackCount(); i++ {
		t := out.TrackByIndex(i)
		tr := TrackRecord{ID: t.ID(), Samples: make([]SampleRecord, 0, len(t.Samples()))}
		if f, ok := t.Format(); ok {
			tr.Format = formatRecord(f)
		}
		for _, s := range t.Samples() {
			tr.Samples = append(tr.Samples, SampleRecord{
				TimeUs: s.TimeUs,
				Flags:  uint32(s.Flags),
				Size:   len(s.Data),
				SHA256: hashHex(s.Data),
			})
		}
		rec.Tracks = append(rec.Tracks, tr)
	}
	return rec
}

func formatRecord(f extractor.Format) *FormatRecord {
	fr := &FormatRecord{
		ID:           f.ID,
		MimeType:     f.MimeType,
		SampleRate:   f.SampleRate,
		ChannelCount: f.ChannelCount,
		Width:        f.Width,
		Height:       f.Height,
		DurationUs:   f.DurationUs,
	}
	if len(f.InitData) > 0 {
		fr.InitDataSHA = hashHex(f.InitData)
	}
	return fr
}

func hashHex(p []byte) string {
	sum := sha256.Sum256(p)
	return hex.EncodeToString(sum[:])
}

// Encode produces the canonical byte form of a recording: JSON with
// sorted object keys, NFC-normalized strings, no HTML escaping and no
// floats, so the same recording always yields the same bytes.
func Encode(rec *Recording) ([]byte, error) {
	v, err := toPlain(rec)
	if err != nil {
		return nil, err
	}
	return marshalCanonical(v)
}

// Decode parses encoded dump bytes back into a Recording, for
// structural diffing of mismatches.
func Decode(data []byte) (*Recording, error) {
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	return &rec, nil
}

// toPlain round-trips the record structs through encoding/json so the
// canonical marshaller only sees maps, slices and scalars, with the
// omitempty rules of the struct tags already applied.
func toPlain(rec *Recording) (any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in dump encoding")
	case string:
		return marshalCanonicalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		// Dumps carry only integers.
		if _, err := val.Int64(); err != nil {
			return nil, fmt.Errorf("non-integer number in dump encoding: %v", val)
		}
		return []byte(val.String()), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported type in dump encoding: %T", v)
	}
}

// marshalCanonicalString NFC-normalizes at the serialization boundary
// and disables HTML escaping so the bytes are stable across Go
// versions and input sources.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}
	return result, nil
}
