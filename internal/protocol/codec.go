package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode marshals payload into an envelope tagged with event.
func Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, fmt.Errorf("encoding envelope: empty event")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses a single envelope.
func Decode(b []byte) (Envelope, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return Envelope{}, fmt.Errorf("decoding envelope: empty message")
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decoding envelope: missing event")
	}
	return env, nil
}

// DecodeFrame splits a frame that may hold several newline-separated
// envelopes. Malformed lines are skipped and reported in the returned error.
func DecodeFrame(frame []byte) ([]Envelope, error) {
	var (
		out      []Envelope
		firstErr error
	)
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		env, err := Decode(line)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, env)
	}
	return out, firstErr
}

// DecodeData unmarshals the payload of env into T.
func DecodeData[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, fmt.Errorf("empty payload for event %q", env.Event)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decoding %s payload: %w", env.Event, err)
	}
	return out, nil
}
