package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Payload keys written by FileEvent and the genesis block.
const (
	KeyFilename   = "filename"
	KeyFileHash   = "file_hash"
	KeyFileSize   = "file_size"
	KeyUploaderID = "uploader_id"
	KeyAction     = "action"
	KeyTimestamp  = "timestamp"
	KeyNote       = "note"
)

// Action tags. Callers may also pass free text.
const (
	ActionGenesis        = "GENESIS"
	ActionFileRegistered = "FILE_REGISTERED"
	ActionFileCreated    = "FILE_CREATED"
	ActionFileModified   = "FILE_MODIFIED"
)

// Payload is the opaque record a block carries. Block and chain only read
// the filename, uploader and action keys.
type Payload map[string]interface{}

// Clone returns a deep copy of nested maps and slices.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return map[string]interface{}(Payload(t).Clone())
	case Payload:
		return t.Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Normalize converts p to the generic shape a stored payload decodes to:
// nested objects become map[string]interface{}, arrays []interface{} and
// numbers json.Number. The result shares nothing with p.
func Normalize(p Payload) (Payload, error) {
	if p == nil {
		return Payload{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out Payload
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if out == nil {
		out = Payload{}
	}
	return out, nil
}

// String returns the value at key if it is a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int64 returns the numeric value at key, whatever numeric type decoding
// produced.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := strconv.ParseFloat(string(v), 64)
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	default:
		return 0, false
	}
}

// FileEvent is the payload recorded when a file is registered or modified.
type FileEvent struct {
	Filename   string
	FileHash   string
	FileSize   int64
	UploaderID string
	Action     string
	Timestamp  time.Time // event time, distinct from the block timestamp
}

// Payload converts the event to a block payload.
func (e FileEvent) Payload() Payload {
	return Payload{
		KeyFilename:   e.Filename,
		KeyFileHash:   e.FileHash,
		KeyFileSize:   e.FileSize,
		KeyUploaderID: e.UploaderID,
		KeyAction:     e.Action,
		KeyTimestamp:  e.Timestamp.Format(time.RFC3339Nano),
	}
}

// FileEventFromPayload reads the file event fields back out of a payload.
// Missing fields are left zero.
func FileEventFromPayload(p Payload) FileEvent {
	size, _ := p.Int64(KeyFileSize)
	ev := FileEvent{
		Filename:   p.String(KeyFilename),
		FileHash:   p.String(KeyFileHash),
		FileSize:   size,
		UploaderID: p.String(KeyUploaderID),
		Action:     p.String(KeyAction),
	}
	if ts := p.String(KeyTimestamp); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t
		}
	}
	return ev
}
