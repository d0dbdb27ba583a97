package serializer

import (
	"fmt"
	"strings"
)

// SerializationError reports that a value could not be encoded by any
// enabled backend. Callers treat it as a capture-skip, never as a failure
// of the instrumented program.
type SerializationError struct {
	Attempts map[string]error
}

func (e *SerializationError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for tag, err := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", tag, err))
	}
	return "no enabled backend could serialize value: " + strings.Join(parts, "; ")
}

// DecodeError reports that a payload could not be decoded, naming the
// backend tag it was stored with.
type DecodeError struct {
	Tag string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode payload tagged %q: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Serializer tries a primary backend and optionally falls back to a
// secondary one, recording which backend produced each payload.
type Serializer struct {
	primary         Backend
	fallback        Backend
	fallbackEnabled bool
}

// New builds a Serializer. The primary tag is required; fallbackTag may
// be empty to disable fallback entirely.
func New(primaryTag, fallbackTag string, fallbackEnabled bool) (*Serializer, error) {
	primary := lookupBackend(primaryTag)
	if primary == nil {
		return nil, fmt.Errorf("unknown serialization backend %q", primaryTag)
	}

	s := &Serializer{primary: primary, fallbackEnabled: fallbackEnabled}
	if fallbackTag != "" {
		fb := lookupBackend(fallbackTag)
		if fb == nil {
			return nil, fmt.Errorf("unknown fallback backend %q", fallbackTag)
		}
		s.fallback = fb
	}
	return s, nil
}

// Default returns a Serializer with the gob primary and json fallback.
func Default() *Serializer {
	s, _ := New(BackendGob, BackendJSON, true)
	return s
}

// Serialize encodes a value, trying the primary backend first and the
// fallback second. The returned tag names the backend that produced the
// bytes and must be stored with them.
func (s *Serializer) Serialize(v any) ([]byte, string, error) {
	attempts := make(map[string]error, 2)

	if available(s.primary) {
		data, err := encode(s.primary, v)
		if err == nil {
			return data, s.primary.Name(), nil
		}
		attempts[s.primary.Name()] = err
	} else {
		attempts[s.primary.Name()] = fmt.Errorf("backend unavailable")
	}

	if s.fallbackEnabled && s.fallback != nil && available(s.fallback) {
		data, err := encode(s.fallback, v)
		if err == nil {
			return data, s.fallback.Name(), nil
		}
		attempts[s.fallback.Name()] = err
	}

	return nil, "", &SerializationError{Attempts: attempts}
}

// SerializeAll encodes a batch of values with a single backend so the
// whole batch shares one tag. The primary is tried for the entire batch;
// if any value fails the whole batch is retried with the fallback.
func (s *Serializer) SerializeAll(values []any) ([][]byte, string, error) {
	attempts := make(map[string]error, 2)

	backends := []Backend{s.primary}
	if s.fallbackEnabled && s.fallback != nil {
		backends = append(backends, s.fallback)
	}

	for _, b := range backends {
		if !available(b) {
			attempts[b.Name()] = fmt.Errorf("backend unavailable")
			continue
		}
		out, err := encodeAll(b, values)
		if err == nil {
			return out, b.Name(), nil
		}
		attempts[b.Name()] = err
	}

	return nil, "", &SerializationError{Attempts: attempts}
}

// Deserialize decodes a payload using the backend named by its tag. If
// that backend is unknown or unavailable in this process, every other
// registered backend is attempted in order before failing.
func (s *Serializer) Deserialize(data []byte, tag string) (any, error) {
	tagged := lookupBackend(tag)
	if tagged != nil && available(tagged) {
		v, err := decode(tagged, data)
		if err == nil {
			return v, nil
		}
		return nil, &DecodeError{Tag: tag, Err: err}
	}

	// The tagged backend is not usable here. Try the remaining backends
	// in registration order; one of them may still understand the bytes.
	var lastErr error
	for _, b := range registry {
		if b.Name() == tag || !available(b) {
			continue
		}
		v, err := decode(b, data)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("backend not registered")
	}
	return nil, &DecodeError{Tag: tag, Err: lastErr}
}

// encode invokes a backend, converting panics into errors so a misbehaving
// backend can never take down the instrumented program.
func encode(b Backend, v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked: %v", b.Name(), r)
		}
	}()
	return b.Encode(v)
}

func encodeAll(b Backend, values []any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		data, err := encode(b, v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

func decode(b Backend, data []byte) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked: %v", b.Name(), r)
		}
	}()
	return b.Decode(data)
}
