package capture

import (
	"github.com/abdul-hamid-achik/snapcap/packages/core/config"
	"github.com/abdul-hamid-achik/snapcap/packages/filter"
	"github.com/abdul-hamid-achik/snapcap/packages/perf"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

// options collects per-wrap settings layered over the Capturer's config.
type options struct {
	functionID     string
	paramNames     []string
	keywordParams  []string
	path           string
	retention      int
	mode           store.Mode
	ignoreArgs     []string
	detectors      []filter.Detector
	useDetectors   bool
	maxValueSize   int
	backend        string
	fallback       *bool
	enabled        *bool
	captureReturns *bool
	minimal        *bool
	monitor        *perf.Monitor
	cfg            *config.Config
}

// Option configures one wrapped function.
type Option func(*options)

// WithFunctionID sets the stable identifier captures are stored under.
// Defaults to the function's qualified runtime name.
func WithFunctionID(id string) Option {
	return func(o *options) { o.functionID = id }
}

// WithParamNames names the wrapped function's parameters in declaration
// order, so captures are keyed by name rather than position. Unnamed
// parameters fall back to arg0, arg1, ...
//
// A leading context.Context parameter is not captured and must not be
// named.
func WithParamNames(names ...string) Option {
	return func(o *options) { o.paramNames = names }
}

// WithKeywordParams marks which named parameters are keyword-only: they
// are replayed by name instead of by position.
func WithKeywordParams(names ...string) Option {
	return func(o *options) { o.keywordParams = names }
}

// WithPath overrides the storage root for this function.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithRetention overrides how many captures are retained.
func WithRetention(k int) Option {
	return func(o *options) { o.retention = k }
}

// WithMode sets the retention mode. Required (here, in the Capturer
// config, or via SNAPCAP_MODE): there is no implied default.
func WithMode(mode store.Mode) Option {
	return func(o *options) { o.mode = mode }
}

// WithIgnoreArgs adds parameter-name patterns to redact, on top of the
// configured ones.
func WithIgnoreArgs(patterns ...string) Option {
	return func(o *options) { o.ignoreArgs = append(o.ignoreArgs, patterns...) }
}

// WithDetectors replaces the value detectors for this function. Passing
// none disables value detection.
func WithDetectors(detectors ...filter.Detector) Option {
	return func(o *options) {
		o.useDetectors = true
		o.detectors = detectors
	}
}

// WithMaxValueSize overrides the per-argument size limit.
func WithMaxValueSize(n int) Option {
	return func(o *options) { o.maxValueSize = n }
}

// WithBackend overrides the primary serialization backend tag.
func WithBackend(tag string) Option {
	return func(o *options) { o.backend = tag }
}

// WithFallbackEnabled overrides whether the fallback backend may be used.
func WithFallbackEnabled(enabled bool) Option {
	return func(o *options) { o.fallback = &enabled }
}

// WithEnabled overrides capture for this function only.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = &enabled }
}

// WithCaptureReturns also records return values; storage then happens
// after the call returns successfully and is skipped when it panics.
func WithCaptureReturns(enabled bool) Option {
	return func(o *options) { o.captureReturns = &enabled }
}

// WithMinimal records only type names instead of real values.
func WithMinimal(enabled bool) Option {
	return func(o *options) { o.minimal = &enabled }
}

// WithMonitor attaches a performance monitor that times and throttles
// capture attempts for this function.
func WithMonitor(m *perf.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithConfig replaces the inherited configuration wholesale.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}
