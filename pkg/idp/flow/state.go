package flow

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is a suspended computation: an opaque payload tagged with the
// stage that created it. It crosses a redirect boundary through the
// ContinuationStore and is resumed by a later, unrelated request,
// possibly handled by a different worker.
type State struct {
	ID        string         `json:"id"`
	Stage     string         `json:"stage"`
	CreatedAt time.Time      `json:"created_at"`
	Retryable bool           `json:"retryable"`
	Payload   map[string]any `json:"payload"`
}

func NewState() *State {
	return &State{Payload: map[string]any{}}
}

func (s *State) Set(key string, value any) {
	if s.Payload == nil {
		s.Payload = map[string]any{}
	}
	s.Payload[key] = value
}

func (s *State) Get(key string) (any, bool) {
	value, ok := s.Payload[key]
	return value, ok
}

func (s *State) GetString(key string) string {
	value, _ := s.Payload[key].(string)
	return value
}

// GetInt reads an integer payload entry. JSON decoding turns numbers
// into float64, so both representations are accepted.
func (s *State) GetInt(key string) int {
	switch value := s.Payload[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	}
	return 0
}

// SetJSON stores value under key in its JSON object form, so the entry
// reads back identically whether or not the state crossed a
// serialization boundary in between.
func (s *State) SetJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode payload entry %q: %w", key, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	s.Set(key, generic)
	return nil
}

func (s *State) GetJSON(key string, out any) error {
	raw, ok := s.Payload[key]
	if !ok {
		return fmt.Errorf("missing payload entry %q", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *State) encode() ([]byte, error) {
	return json.Marshal(s)
}

// decodeState always yields a fresh copy, concurrent or duplicate
// resumptions of the same id never share mutable payload structures.
func decodeState(data []byte) (*State, error) {
	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if state.Payload == nil {
		state.Payload = map[string]any{}
	}
	return state, nil
}
