package row

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireValue is Value's JSON wire shape, used by the persistent store
// adapter to serialize payloads; the tagged-variant Value type has no
// natural JSON encoding of its own.
type wireValue struct {
	Kind Kind   `json:"k"`
	I    int64  `json:"i,omitempty"`
	N    float64 `json:"n,omitempty"`
	S    string `json:"s,omitempty"`
	B    bool   `json:"b,omitempty"`
	T    string `json:"t,omitempty"`
	Bs   []byte `json:"bs,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.Kind, I: v.I, N: v.N, S: v.S, B: v.B, Bs: v.Bs}
	if v.Kind == KindDatetime {
		w.T = v.T.Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Value{Kind: w.Kind, I: w.I, N: w.N, S: w.S, B: w.B, Bs: w.Bs}
	if w.Kind == KindDatetime {
		t, err := time.Parse(time.RFC3339Nano, w.T)
		if err != nil {
			return fmt.Errorf("row: decoding datetime value: %w", err)
		}
		v.T = t
	}
	return nil
}

// MarshalPayload serializes a Payload for persistence.
func MarshalPayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPayload restores a Payload previously produced by
// MarshalPayload.
func UnmarshalPayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}
