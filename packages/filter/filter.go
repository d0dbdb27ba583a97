// Package filter redacts sensitive or oversized parameters from a
// bound-argument list before anything is persisted.
//
// Filtering never drops a parameter: a redacted or truncated argument is
// replaced with a distinguishable sentinel so the positional arity of the
// original call stays reconstructible for replay.
package filter

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// Sentinel marks an argument whose real value was withheld.
type Sentinel string

const (
	// Redacted replaces values hidden for security reasons.
	Redacted Sentinel = "[REDACTED]"
	// Truncated replaces values dropped because they exceeded the
	// configured size limit. Distinct from Redacted so tests can tell
	// "hidden" from "too big".
	Truncated Sentinel = "[TRUNCATED]"
)

// IsSentinel reports whether a value is one of the filter sentinels.
func IsSentinel(v any) bool {
	_, ok := v.(Sentinel)
	return ok
}

// Arg is one bound argument. A slice of Args preserves positional order.
type Arg struct {
	Name        string
	Value       any
	KeywordOnly bool
}

// Filter applies name patterns, value detectors and a size limit to a
// bound-argument list. Apply is a pure function: it never mutates its
// input and never returns an error.
type Filter struct {
	patterns     []string
	detectors    []Detector
	maxValueSize int
	minimal      bool
}

// Option configures a Filter.
type Option func(*Filter)

// WithPatterns sets the parameter-name patterns that trigger redaction.
// A pattern matches exactly, as a case-insensitive substring, or with
// "*" wildcards.
func WithPatterns(patterns ...string) Option {
	return func(f *Filter) {
		f.patterns = append(f.patterns, patterns...)
	}
}

// WithDetectors sets the value detectors that trigger redaction
// regardless of parameter name.
func WithDetectors(detectors ...Detector) Option {
	return func(f *Filter) {
		f.detectors = append(f.detectors, detectors...)
	}
}

// WithMaxValueSize truncates any argument whose serialized size would
// exceed n bytes. Zero means unlimited.
func WithMaxValueSize(n int) Option {
	return func(f *Filter) {
		f.maxValueSize = n
	}
}

// WithMinimal records only the type name of each non-redacted argument,
// for production deployments that must not persist real values at all.
func WithMinimal(minimal bool) Option {
	return func(f *Filter) {
		f.minimal = minimal
	}
}

// New builds a Filter.
func New(opts ...Option) *Filter {
	f := &Filter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply returns a filtered copy of args. Arguments whose name matches a
// pattern, or whose value matches a detector, become Redacted; arguments
// over the size limit become Truncated. Everything else passes through
// untouched.
func (f *Filter) Apply(args []Arg) []Arg {
	out := make([]Arg, len(args))
	for i, a := range args {
		out[i] = Arg{Name: a.Name, KeywordOnly: a.KeywordOnly}

		switch {
		case f.nameMatches(a.Name) || f.valueMatches(a.Name, a.Value):
			out[i].Value = Redacted
		case f.oversized(a.Value):
			out[i].Value = Truncated
		case f.minimal:
			out[i].Value = fmt.Sprintf("%T", a.Value)
		default:
			out[i].Value = a.Value
		}
	}
	return out
}

func (f *Filter) nameMatches(name string) bool {
	for _, p := range f.patterns {
		if matchPattern(p, name) {
			return true
		}
	}
	return false
}

// valueMatches runs the detectors. A detector that panics is treated as
// "not matched": capture must degrade, never crash the caller.
func (f *Filter) valueMatches(name string, v any) bool {
	for _, d := range f.detectors {
		if safeDetect(d, name, v) {
			return true
		}
	}
	return false
}

func safeDetect(d Detector, name string, v any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("warning: value detector %s failed on argument %s: %v", d.Name, name, r)
			matched = false
		}
	}()
	return d.Match(v)
}

func (f *Filter) oversized(v any) bool {
	if f.maxValueSize <= 0 {
		return false
	}
	return sizeOf(v) > f.maxValueSize
}

// sizeOf estimates the serialized size of a value. JSON length is a good
// proxy for both backends; values JSON cannot express fall back to their
// formatted length.
func sizeOf(v any) int {
	if data, err := json.Marshal(v); err == nil {
		return len(data)
	}
	return len(fmt.Sprintf("%v", v))
}

// matchPattern matches a parameter name against a pattern. Patterns with
// "*" are compiled to anchored case-insensitive regexps; plain patterns
// match as case-insensitive substrings, which also covers exact matches.
func matchPattern(pattern, name string) bool {
	if strings.Contains(pattern, "*") {
		quoted := regexp.QuoteMeta(pattern)
		quoted = strings.ReplaceAll(quoted, `\*`, ".*")
		re, err := regexp.Compile(`(?i)^` + quoted + `$`)
		if err == nil {
			return re.MatchString(name)
		}
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}
