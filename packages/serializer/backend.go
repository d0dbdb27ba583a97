package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"sync"
)

// Backend encodes and decodes a single value.
type Backend interface {
	// Name returns the stable identifier recorded as the backend tag.
	Name() string
	// Encode converts a value to bytes.
	Encode(v any) ([]byte, error)
	// Decode converts bytes produced by Encode back to a value.
	Decode(data []byte) (any, error)
}

// Backend tags. These are persisted inside capture files, so they must
// never change.
const (
	BackendGob  = "gob"
	BackendJSON = "json"
)

// registry holds all known backends in preference order.
var registry = []Backend{gobBackend{}, jsonBackend{}}

// lookupBackend returns the backend with the given tag, or nil.
func lookupBackend(tag string) Backend {
	for _, b := range registry {
		if b.Name() == tag {
			return b
		}
	}
	return nil
}

// availability is probed once per backend and cached for the process
// lifetime. Whether a backend works is a process-wide fact, not a
// per-call one.
var (
	probeOnce    sync.Once
	probeResults map[string]bool
)

// available reports whether a backend passed its self-test probe.
func available(b Backend) bool {
	probeOnce.Do(func() {
		probeResults = make(map[string]bool, len(registry))
		for _, backend := range registry {
			probeResults[backend.Name()] = probe(backend)
		}
	})
	return probeResults[b.Name()]
}

// probe round-trips a canonical value through the backend.
func probe(b Backend) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	data, err := b.Encode(map[string]any{"probe": "snapcap"})
	if err != nil {
		return false
	}
	if _, err := b.Decode(data); err != nil {
		return false
	}
	return true
}

// gobBackend is the object-graph-aware backend. It preserves concrete Go
// types, including pointers and shared sub-structures, but requires the
// same concrete types to be registered in the decoding process.
type gobBackend struct{}

func (gobBackend) Name() string { return BackendGob }

func (gobBackend) Encode(v any) ([]byte, error) {
	if v != nil {
		registerGobType(v)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobBackend) Decode(data []byte) (any, error) {
	var v any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return v, nil
}

// registerGobType makes a concrete type known to gob. Register panics if
// the same name was registered for a different type; that is an encode
// failure, not a process failure, so the panic is absorbed and the
// subsequent Encode reports the real error.
func registerGobType(v any) {
	defer func() { _ = recover() }()
	gob.Register(v)
}

// jsonBackend is the baseline backend. It handles anything expressible as
// JSON and is always decodable in later processes, at the cost of
// flattening numeric types to float64 and structs to maps.
type jsonBackend struct{}

func (jsonBackend) Name() string { return BackendJSON }

func (jsonBackend) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (jsonBackend) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return v, nil
}
