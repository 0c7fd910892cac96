package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// HistorySection is one section's rows inside a history entry.
type HistorySection struct {
	Section string `json:"section"`
	Data    []Row  `json:"data"`
}

// LineIDs returns the line identifiers of the section's rows, index-aligned.
func (s HistorySection) LineIDs() []string {
	ids := make([]string, len(s.Data))
	for i, r := range s.Data {
		ids[i] = r.LineID()
	}
	return ids
}

// HistoryEntry is one ground-truth record touched by a task execution.
type HistoryEntry struct {
	SystemRecordID string           `json:"system_record_id"`
	Records        []HistorySection `json:"records"`
}

// KeyedEntries pairs a composite history key with its entries.
type KeyedEntries struct {
	Key     string
	Entries []HistoryEntry
}

// TaskID returns the first component of the composite key.
func (k KeyedEntries) TaskID() string {
	return keyPart(k.Key, 0)
}

// TaskDefKey returns the second component of the composite key.
func (k KeyedEntries) TaskDefKey() string {
	return keyPart(k.Key, 1)
}

func keyPart(key string, i int) string {
	parts := strings.SplitN(key, "|", 3)
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// KeyedData is the history's keyed_data object. Key order is significant
// and is preserved from the JSON source.
type KeyedData []KeyedEntries

// UnmarshalJSON decodes a JSON object while keeping its key order.
func (kd *KeyedData) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*kd = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "model: keyed_data open")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.New("model: keyed_data must be an object")
	}

	out := KeyedData{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "model: keyed_data key")
		}
		key, _ := tok.(string)

		var entries []HistoryEntry
		if err := dec.Decode(&entries); err != nil {
			return eris.Wrapf(err, "model: keyed_data entries for %q", key)
		}
		out = append(out, KeyedEntries{Key: key, Entries: entries})
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "model: keyed_data close")
	}

	*kd = out
	return nil
}

// MarshalJSON encodes the keyed data as an object in its stored order.
func (kd KeyedData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ke := range kd {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ke.Key)
		if err != nil {
			return nil, eris.Wrap(err, "model: marshal keyed_data key")
		}
		buf.Write(k)
		buf.WriteByte(':')
		entries := ke.Entries
		if entries == nil {
			entries = []HistoryEntry{}
		}
		v, err := json.Marshal(entries)
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal keyed_data %q", ke.Key)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DocumentHistory is the ground-truth index used for identifier resolution.
type DocumentHistory struct {
	KeyedData KeyedData `json:"keyed_data"`
}
