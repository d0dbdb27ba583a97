// Package loader is the read-side API over a capture store, used by
// tests to replay previously captured call arguments.
//
// Callers can distinguish three outcomes: not found (no matching slot,
// checked with errors.Is against ErrNotFound — skip or fall back), a load
// error (the slot exists but cannot be decoded — treat as a hard test
// failure, it means the code and its captures have drifted), and success.
// Redacted and truncated sentinels are returned exactly as stored; a
// replay against withheld data is a visible condition, never a hidden
// substitution.
package loader

import (
	"fmt"

	"github.com/abdul-hamid-achik/snapcap/packages/filter"
	"github.com/abdul-hamid-achik/snapcap/packages/serializer"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

// ErrNotFound mirrors store.ErrNotFound for read-side callers.
var ErrNotFound = store.ErrNotFound

// LoadError reports a slot that exists but could not be decoded. The
// backend tag names the serializer the payload requires, which is the
// first thing to check when captures stop loading.
type LoadError struct {
	FunctionID string
	Sequence   uint64
	Tag        string
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load capture %s/%d (backend %q): %v", e.FunctionID, e.Sequence, e.Tag, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NamedArg is one replayed argument with its parameter name. A slice of
// NamedArgs preserves the positional order of the original call.
type NamedArg struct {
	Name  string
	Value any
}

// Loader selects captures from a store and deserializes them for replay.
type Loader struct {
	store *store.Store
	ser   *serializer.Serializer
}

// Option configures a Loader.
type Option func(*Loader)

// WithSerializer replaces the default serializer.
func WithSerializer(s *serializer.Serializer) Option {
	return func(l *Loader) { l.ser = s }
}

// New opens a Loader over the store rooted at path.
func New(path string, opts ...Option) (*Loader, error) {
	st, err := store.New(path)
	if err != nil {
		return nil, err
	}

	l := &Loader{store: st, ser: serializer.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load returns the selected capture's positional arguments and
// keyword-only arguments, ready to replay the original call.
func (l *Loader) Load(functionID string, sel store.Selector) ([]any, map[string]any, error) {
	c, err := l.store.Get(functionID, sel)
	if err != nil {
		return nil, nil, err
	}

	args := make([]any, len(c.Args))
	for i, v := range c.Args {
		args[i], err = l.decode(c, v)
		if err != nil {
			return nil, nil, err
		}
	}

	var kwargs map[string]any
	if len(c.Kwargs) > 0 {
		kwargs = make(map[string]any, len(c.Kwargs))
		for name, v := range c.Kwargs {
			kwargs[name], err = l.decode(c, v)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	return args, kwargs, nil
}

// LoadDict returns the selected capture as an ordered name-to-value
// list: positional arguments first, in call order, then keyword-only
// arguments.
func (l *Loader) LoadDict(functionID string, sel store.Selector) ([]NamedArg, error) {
	c, err := l.store.Get(functionID, sel)
	if err != nil {
		return nil, err
	}

	out := make([]NamedArg, 0, len(c.Args)+len(c.Kwargs))
	for _, v := range c.Args {
		value, err := l.decode(c, v)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedArg{Name: v.Name, Value: value})
	}
	for name, v := range c.Kwargs {
		value, err := l.decode(c, v)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedArg{Name: name, Value: value})
	}
	return out, nil
}

// LoadReturns returns the selected capture's recorded return values, or
// ErrNotFound if return capture was not enabled for that call.
func (l *Loader) LoadReturns(functionID string, sel store.Selector) ([]any, error) {
	c, err := l.store.Get(functionID, sel)
	if err != nil {
		return nil, err
	}
	if len(c.Returns) == 0 {
		return nil, ErrNotFound
	}

	out := make([]any, len(c.Returns))
	for i, v := range c.Returns {
		out[i], err = l.decode(c, v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HasCapture reports whether at least one capture exists for the
// function.
func (l *Loader) HasCapture(functionID string) bool {
	_, err := l.store.Get(functionID, store.Latest())
	return err == nil
}

// Count returns how many live captures the function has.
func (l *Loader) Count(functionID string) int {
	infos, err := l.store.List(functionID)
	if err != nil {
		return 0
	}
	return len(infos)
}

// Functions lists every function id with captures in the store.
func (l *Loader) Functions() ([]string, error) {
	return l.store.Functions()
}

// decode materializes one stored value: sentinels pass through as-is,
// everything else goes through the serializer using the capture's
// backend tag.
func (l *Loader) decode(c *store.Capture, v store.Value) (any, error) {
	switch v.Sentinel {
	case store.SentinelRedacted:
		return filter.Redacted, nil
	case store.SentinelTruncated:
		return filter.Truncated, nil
	}

	value, err := l.ser.Deserialize(v.Data, c.Backend)
	if err != nil {
		return nil, &LoadError{FunctionID: c.FunctionID, Sequence: c.Sequence, Tag: c.Backend, Err: err}
	}
	return value, nil
}

// Load is a convenience for the common test pattern: load the capture at
// the given index (0 = latest) from the store rooted at path.
func Load(functionID string, index int, path string) ([]any, map[string]any, error) {
	l, err := New(path)
	if err != nil {
		return nil, nil, err
	}
	return l.Load(functionID, store.ByIndex(index))
}

// HasCapture is a convenience existence check against the store rooted
// at path.
func HasCapture(functionID, path string) bool {
	l, err := New(path)
	if err != nil {
		return false
	}
	return l.HasCapture(functionID)
}
