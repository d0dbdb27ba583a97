package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/snapcap/packages/core/config"
	"github.com/abdul-hamid-achik/snapcap/packages/filter"
	"github.com/abdul-hamid-achik/snapcap/packages/perf"
	"github.com/abdul-hamid-achik/snapcap/packages/serializer"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Capturer wraps functions using one shared configuration. The config is
// read once at construction; nothing on the call path consults ambient
// state beyond the process-wide enable switch.
type Capturer struct {
	cfg     *config.Config
	monitor *perf.Monitor
}

// New creates a Capturer from an explicit configuration. A nil config
// uses the built-in defaults plus SNAPCAP_* environment overrides.
func New(cfg *config.Config) *Capturer {
	if cfg == nil {
		loaded, err := config.LoadConfig("")
		if err != nil {
			log.Printf("warning: cannot load capture config, using defaults: %v", err)
			loaded = config.DefaultConfig()
		}
		cfg = loaded
	}
	return &Capturer{cfg: cfg, monitor: perf.NewMonitor(cfg.ThrottleRate)}
}

// Monitor returns the capturer's performance monitor.
func (c *Capturer) Monitor() *perf.Monitor { return c.monitor }

var (
	defaultCapturer     *Capturer
	defaultCapturerOnce sync.Once
)

// Default returns the process-wide Capturer, built lazily from the
// config file search path and environment.
func Default() *Capturer {
	defaultCapturerOnce.Do(func() {
		defaultCapturer = New(nil)
	})
	return defaultCapturer
}

// Wrap is Default().Wrap.
func Wrap(fn any, opts ...Option) any {
	return Default().Wrap(fn, opts...)
}

// Func wraps a function while preserving its static type.
func Func[F any](fn F, opts ...Option) F {
	return Wrap(fn, opts...).(F)
}

// Wrap returns a function with the same signature as fn that attempts to
// capture each call's arguments before invoking fn. The wrapped function
// behaves identically to fn in return values and panics.
//
// Wrap never fails: if fn is not a function, or the capture pipeline
// cannot be assembled, the problem is logged and fn is returned (or
// wrapped with capture disabled) so the program is unaffected.
func (c *Capturer) Wrap(fn any, opts ...Option) any {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		log.Printf("warning: capture.Wrap needs a function, got %T; returning value unchanged", fn)
		return fn
	}

	o := &options{cfg: c.cfg}
	for _, opt := range opts {
		opt(o)
	}

	w, err := c.newWrapper(v, o)
	if err != nil {
		log.Printf("warning: capture disabled for %s: %v", functionID(v, o), err)
		return fn
	}

	return reflect.MakeFunc(v.Type(), w.call).Interface()
}

// wrapper holds everything one wrapped function needs on its call path.
type wrapper struct {
	fn         reflect.Value
	typ        reflect.Type
	functionID string

	paramNames []string
	kwOnly     map[string]bool
	hasCtx     bool

	enabled        bool
	captureReturns bool
	putOpts        store.PutOptions

	filter  *filter.Filter
	ser     *serializer.Serializer
	store   *store.Store
	monitor *perf.Monitor
}

func (c *Capturer) newWrapper(v reflect.Value, o *options) (*wrapper, error) {
	cfg := o.cfg

	w := &wrapper{
		fn:         v,
		typ:        v.Type(),
		functionID: functionID(v, o),
		paramNames: o.paramNames,
		kwOnly:     make(map[string]bool, len(o.keywordParams)),
		enabled:    true,
		monitor:    o.monitor,
	}
	if w.monitor == nil {
		w.monitor = c.monitor
	}
	for _, name := range o.keywordParams {
		w.kwOnly[name] = true
	}
	if w.typ.NumIn() > 0 && w.typ.In(0) == contextType {
		w.hasCtx = true
	}

	if o.enabled != nil {
		w.enabled = *o.enabled
	} else {
		w.enabled = cfg.GetEnabled()
	}
	if o.captureReturns != nil {
		w.captureReturns = *o.captureReturns
	} else {
		w.captureReturns = cfg.GetCaptureReturns()
	}

	mode := store.Mode(cfg.Mode)
	if o.mode != "" {
		mode = o.mode
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("retention mode %q is not valid; set one explicitly", mode)
	}
	retention := cfg.Retention
	if o.retention > 0 {
		retention = o.retention
	}
	w.putOpts = store.PutOptions{Capacity: retention, Mode: mode}

	patterns := append(append([]string(nil), cfg.IgnoreArgs...), o.ignoreArgs...)
	detectors := filter.DefaultDetectors()
	if o.useDetectors {
		detectors = o.detectors
	}
	maxSize := cfg.MaxValueSize
	if o.maxValueSize > 0 {
		maxSize = o.maxValueSize
	}
	minimal := cfg.GetMinimal()
	if o.minimal != nil {
		minimal = *o.minimal
	}
	w.filter = filter.New(
		filter.WithPatterns(patterns...),
		filter.WithDetectors(detectors...),
		filter.WithMaxValueSize(maxSize),
		filter.WithMinimal(minimal),
	)

	backend := cfg.Backend
	if o.backend != "" {
		backend = o.backend
	}
	fallbackEnabled := cfg.GetFallbackEnabled()
	if o.fallback != nil {
		fallbackEnabled = *o.fallback
	}
	ser, err := serializer.New(backend, serializer.BackendJSON, fallbackEnabled)
	if err != nil {
		return nil, err
	}
	w.ser = ser

	path := cfg.Path
	if o.path != "" {
		path = o.path
	}
	st, err := store.New(path)
	if err != nil {
		return nil, err
	}
	w.store = st

	return w, nil
}

// call is the wrapped function body. Argument capture happens before the
// real call so invocations that panic are still captured; with return
// capture enabled, storage moves after a successful return instead.
func (w *wrapper) call(in []reflect.Value) []reflect.Value {
	if !w.captureReturns {
		w.attempt(in, nil)
	}

	var out []reflect.Value
	if w.typ.IsVariadic() {
		out = w.fn.CallSlice(in)
	} else {
		out = w.fn.Call(in)
	}

	if w.captureReturns {
		w.attempt(in, out)
	}
	return out
}

// attempt runs the capture pipeline with every failure contained: no
// error and no panic may ever reach the wrapped function's caller.
func (w *wrapper) attempt(in, out []reflect.Value) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("warning: argument capture panicked for %s: %v", w.functionID, r)
		}
	}()

	enabled := processEnabled.Load() && w.enabled

	st := w.store
	if w.hasCtx && len(in) > 0 {
		if ctx, ok := in[0].Interface().(context.Context); ok && ctx != nil {
			if ov, ok := OverridesFrom(ctx); ok {
				if ov.Enabled != nil {
					enabled = *ov.Enabled
				}
				if ov.Path != "" {
					redirected, err := store.New(ov.Path)
					if err != nil {
						log.Printf("warning: capture path override failed for %s: %v", w.functionID, err)
						return
					}
					st = redirected
				}
			}
		}
	}

	if !enabled {
		return
	}

	if !w.monitor.Allow(w.functionID) {
		return
	}

	start := time.Now()
	err := w.persist(st, in, out)
	w.monitor.Record(time.Since(start), err)
	if err != nil {
		log.Printf("warning: argument capture failed for %s: %v", w.functionID, err)
	}
}

// persist binds, filters, serializes and stores one call.
func (w *wrapper) persist(st *store.Store, in, out []reflect.Value) error {
	bound := w.bind(in)
	filtered := w.filter.Apply(bound)

	c := &store.Capture{
		ID:         uuid.NewString(),
		FunctionID: w.functionID,
		Timestamp:  time.Now().UTC(),
		Meta:       store.Meta{PID: os.Getpid(), Hostname: hostname()},
	}

	bytes, err := w.encode(filtered, returnValues(w.typ, out), c)
	if err != nil {
		return err
	}

	_, err = st.Put(c, w.putOpts)
	if errors.Is(err, store.ErrNoOp) {
		return nil
	}
	if err != nil {
		return err
	}
	w.monitor.AddBytes(bytes)
	return nil
}

// bind maps the call's reflect values to named arguments in declaration
// order. A leading context.Context is skipped; a variadic tail is bound
// as one slice-valued argument.
func (w *wrapper) bind(in []reflect.Value) []filter.Arg {
	args := in
	if w.hasCtx && len(args) > 0 {
		args = args[1:]
	}

	bound := make([]filter.Arg, len(args))
	for i, rv := range args {
		name := fmt.Sprintf("arg%d", i)
		if i < len(w.paramNames) {
			name = w.paramNames[i]
		}
		bound[i] = filter.Arg{
			Name:        name,
			Value:       rv.Interface(),
			KeywordOnly: w.kwOnly[name],
		}
	}
	return bound
}

// encode serializes the filtered arguments and any return values as a
// single batch so the whole capture shares one backend tag. It returns
// the total payload size.
func (w *wrapper) encode(filtered []filter.Arg, returns []any, c *store.Capture) (int64, error) {
	toEncode := make([]any, 0, len(filtered)+len(returns))
	for _, a := range filtered {
		if !filter.IsSentinel(a.Value) {
			toEncode = append(toEncode, a.Value)
		}
	}
	toEncode = append(toEncode, returns...)

	payloads, tag, err := w.ser.SerializeAll(toEncode)
	if err != nil {
		return 0, err
	}
	c.Backend = tag

	var total int64
	next := 0
	for _, a := range filtered {
		v := store.Value{Name: a.Name}
		switch a.Value {
		case filter.Redacted:
			v.Sentinel = store.SentinelRedacted
		case filter.Truncated:
			v.Sentinel = store.SentinelTruncated
		default:
			v.Data = payloads[next]
			total += int64(len(v.Data))
			next++
		}

		if a.KeywordOnly {
			if c.Kwargs == nil {
				c.Kwargs = make(map[string]store.Value)
			}
			c.Kwargs[a.Name] = v
		} else {
			c.Args = append(c.Args, v)
		}
	}

	for i := 0; next < len(payloads); i, next = i+1, next+1 {
		data := payloads[next]
		total += int64(len(data))
		c.Returns = append(c.Returns, store.Value{Name: fmt.Sprintf("ret%d", i), Data: data})
	}
	return total, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// returnValues extracts the capturable return values of a successful
// call. A non-nil trailing error counts as an unsuccessful call, so
// nothing is recorded for it; a nil one is simply dropped.
func returnValues(typ reflect.Type, out []reflect.Value) []any {
	if out == nil {
		return nil
	}

	last := len(out) - 1
	if last >= 0 && typ.Out(last).Implements(errorType) {
		if !out[last].IsNil() {
			return nil
		}
		out = out[:last]
	}

	values := make([]any, len(out))
	for i, rv := range out {
		values[i] = rv.Interface()
	}
	return values
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}

// functionID derives the stable identifier for a function: an explicit
// option wins, otherwise the runtime's qualified name, with the method
// closure suffix trimmed.
func functionID(v reflect.Value, o *options) string {
	if o != nil && o.functionID != "" {
		return o.functionID
	}
	name := runtime.FuncForPC(v.Pointer()).Name()
	return strings.TrimSuffix(name, "-fm")
}
