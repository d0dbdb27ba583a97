package capture

import (
	"context"
	"sync/atomic"
)

// processEnabled is the process-wide capture switch. It gates every
// wrapped function with a single atomic load, so disabled capture costs
// almost nothing.
var processEnabled atomic.Bool

func init() {
	processEnabled.Store(true)
}

// Enable turns capture on process-wide.
func Enable() { processEnabled.Store(true) }

// Disable turns capture off process-wide.
func Disable() { processEnabled.Store(false) }

// Enabled reports the process-wide switch.
func Enabled() bool { return processEnabled.Load() }

// Overrides adjusts capture behavior for calls carrying a specific
// context. It replaces the ambient thread-local state other runtimes use:
// overrides travel explicitly with the context value, so behavior under
// concurrency is unambiguous.
type Overrides struct {
	// Enabled, when set, overrides both the process-wide and per-function
	// switches for this call.
	Enabled *bool
	// Path, when non-empty, redirects this call's capture to another
	// store root.
	Path string
}

type overridesKey struct{}

// ContextWithOverrides returns a context carrying capture overrides.
// They only take effect for wrapped functions whose first parameter is a
// context.Context.
func ContextWithOverrides(ctx context.Context, ov Overrides) context.Context {
	return context.WithValue(ctx, overridesKey{}, ov)
}

// OverridesFrom extracts capture overrides from a context.
func OverridesFrom(ctx context.Context) (Overrides, bool) {
	ov, ok := ctx.Value(overridesKey{}).(Overrides)
	return ov, ok
}
