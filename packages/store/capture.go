package store

import "time"

// Mode selects the retention policy for a function's slot log.
type Mode string

const (
	// ModeFillAndStop preserves the first K captures; once the log is
	// full, further writes are no-ops. Early captures are often the most
	// representative, and operators rarely want every run silently
	// replacing fixtures.
	ModeFillAndStop Mode = "fill-and-stop"
	// ModeSlidingWindow keeps the most recent K captures, evicting the
	// slot with the smallest sequence id first.
	ModeSlidingWindow Mode = "sliding-window"
)

// Valid reports whether m names a known retention mode.
func (m Mode) Valid() bool {
	return m == ModeFillAndStop || m == ModeSlidingWindow
}

// Sentinel markers persisted instead of a value payload.
const (
	SentinelRedacted  = "redacted"
	SentinelTruncated = "truncated"
)

// Value is one serialized argument. Exactly one of Data and Sentinel is
// meaningful: a sentinel value carries no payload.
type Value struct {
	Name     string `json:"name"`
	Data     []byte `json:"data,omitempty"`
	Sentinel string `json:"sentinel,omitempty"`
}

// Meta carries informational context about a capture. Nothing in here is
// used for correctness.
type Meta struct {
	PID      int    `json:"pid,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// Capture is one observed invocation, as persisted in a slot file.
// Captures are append-only: once written they are never mutated, only
// evicted or cleared.
type Capture struct {
	ID         string    `json:"id"`
	FunctionID string    `json:"function_id"`
	Sequence   uint64    `json:"sequence_id"`
	Backend    string    `json:"backend_tag"`
	Timestamp  time.Time `json:"timestamp"`
	Meta       Meta      `json:"metadata,omitzero"`

	// Args preserves positional order; it reconstructs the call.
	Args []Value `json:"args"`
	// Kwargs holds keyword-only parameters; order is irrelevant.
	Kwargs map[string]Value `json:"kwargs_only,omitempty"`

	// Returns is only populated when return capture is enabled for the
	// wrapped function.
	Returns []Value `json:"returns,omitempty"`
}

// SlotInfo is the metadata returned by List, newest first.
type SlotInfo struct {
	Sequence  uint64
	ID        string
	Timestamp time.Time
	Size      int64
	Path      string
}
