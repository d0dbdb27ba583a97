package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/snapcap/packages/filter"
	"github.com/abdul-hamid-achik/snapcap/packages/loader"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

func TestWrap_PreservesBehavior(t *testing.T) {
	path := t.TempDir()

	add := Func(func(a, b int) int { return a + b },
		WithFunctionID("behavior.add"),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	assert.Equal(t, 7, add(3, 4))
	assert.Equal(t, 0, add(-2, 2))
	assert.True(t, loader.HasCapture("behavior.add", path))
}

func TestWrap_NonFunctionReturnedUnchanged(t *testing.T) {
	got := Wrap("not a function")
	assert.Equal(t, "not a function", got)

	got = Wrap(nil)
	assert.Nil(t, got)
}

func TestWrap_MissingModeReturnsOriginal(t *testing.T) {
	// Retention mode is an explicit choice; without one the function is
	// returned unwrapped rather than guessing a policy.
	fn := func(n int) int { return n * 2 }
	got := Wrap(fn, WithPath(t.TempDir()))

	assert.Equal(t, reflect.ValueOf(fn).Pointer(), reflect.ValueOf(got).Pointer())
	assert.Equal(t, 10, got.(func(int) int)(5))
}

func TestWrap_RedactionAndRetention(t *testing.T) {
	path := t.TempDir()

	login := Func(func(a, b int, secret string) int { return a + b },
		WithFunctionID("auth.login"),
		WithParamNames("a", "b", "secret"),
		WithKeywordParams("secret"),
		WithIgnoreArgs("secret"),
		WithMode(store.ModeFillAndStop),
		WithRetention(2),
		WithPath(path),
	)

	login(1, 2, "hunter2")
	login(3, 4, "hunter2")
	login(5, 6, "hunter2") // log is full, intentionally dropped

	args, kwargs, err := loader.Load("auth.login", 0, path)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, 3, args[0])
	assert.Equal(t, 4, args[1])
	assert.Equal(t, filter.Redacted, kwargs["secret"])

	args, kwargs, err = loader.Load("auth.login", 1, path)
	require.NoError(t, err)
	assert.Equal(t, 1, args[0])
	assert.Equal(t, 2, args[1])
	assert.Equal(t, filter.Redacted, kwargs["secret"])

	_, _, err = loader.Load("auth.login", 2, path)
	assert.ErrorIs(t, err, loader.ErrNotFound)
}

func TestWrap_KeywordParams(t *testing.T) {
	path := t.TempDir()

	search := Func(func(query string, limit int) int { return limit },
		WithFunctionID("api.search"),
		WithParamNames("query", "limit"),
		WithKeywordParams("limit"),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)
	search("golang", 25)

	args, kwargs, err := loader.Load("api.search", 0, path)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, "golang", args[0])
	require.Len(t, kwargs, 1)
	assert.Equal(t, 25, kwargs["limit"])
}

func TestWrap_Variadic(t *testing.T) {
	path := t.TempDir()

	sum := Func(func(base int, ns ...int) int {
		for _, n := range ns {
			base += n
		}
		return base
	},
		WithFunctionID("math.sum"),
		WithParamNames("base", "ns"),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	assert.Equal(t, 10, sum(1, 2, 3, 4))

	args, _, err := loader.Load("math.sum", 0, path)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, 1, args[0])
	assert.Equal(t, []int{2, 3, 4}, args[1])
}

func TestWrap_PanicPropagatesAfterCapture(t *testing.T) {
	path := t.TempDir()

	boom := Func(func(n int) int { panic("boom") },
		WithFunctionID("panics.boom"),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	assert.PanicsWithValue(t, "boom", func() { boom(41) })

	// Arguments are captured before the call, so the panicking invocation
	// is still on record.
	args, _, err := loader.Load("panics.boom", 0, path)
	require.NoError(t, err)
	assert.Equal(t, 41, args[0])
}

func TestWrap_CaptureReturns(t *testing.T) {
	path := t.TempDir()

	div := Func(func(a, b int) (int, error) {
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	},
		WithFunctionID("math.div"),
		WithParamNames("a", "b"),
		WithCaptureReturns(true),
		WithMode(store.ModeSlidingWindow),
		WithRetention(4),
		WithPath(path),
	)

	got, err := div(10, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	l, err := loader.New(path)
	require.NoError(t, err)

	returns, err := l.LoadReturns("math.div", store.Latest())
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.Equal(t, 5, returns[0])

	// A call that fails still records its arguments, but no returns: the
	// nil result of a failed call is not worth replaying.
	_, err = div(10, 0)
	require.Error(t, err)

	args, _, err := l.Load("math.div", store.Latest())
	require.NoError(t, err)
	assert.Equal(t, 10, args[0])
	assert.Equal(t, 0, args[1])

	_, err = l.LoadReturns("math.div", store.Latest())
	assert.ErrorIs(t, err, loader.ErrNotFound)
}

func TestWrap_CaptureReturnsSkipsPanickingCall(t *testing.T) {
	path := t.TempDir()

	boom := Func(func(n int) int { panic("boom") },
		WithFunctionID("panics.returns"),
		WithCaptureReturns(true),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	assert.Panics(t, func() { boom(1) })
	assert.False(t, loader.HasCapture("panics.returns", path))
}

func TestWrap_FailOpenOnSerializationFailure(t *testing.T) {
	path := t.TempDir()

	// Channels cannot be serialized by any backend; the call must still
	// go through untouched.
	recv := Func(func(ch chan int) int { return cap(ch) },
		WithFunctionID("failopen.serialize"),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	assert.Equal(t, 3, recv(make(chan int, 3)))
	assert.False(t, loader.HasCapture("failopen.serialize", path))
}

func TestWrap_FailOpenOnStorageFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "captures")

	echo := Func(func(s string) string { return s },
		WithFunctionID("failopen.store"),
		WithMode(store.ModeFillAndStop),
		WithPath(root),
	)

	// Replace the store root with a regular file so every write fails.
	require.NoError(t, os.RemoveAll(root))
	require.NoError(t, os.WriteFile(root, []byte("in the way"), 0o644))

	assert.Equal(t, "still works", echo("still works"))
}

func TestProcessSwitch(t *testing.T) {
	defer Enable()
	path := t.TempDir()

	fn := Func(func(n int) int { return n },
		WithFunctionID("switch.fn"),
		WithMode(store.ModeSlidingWindow),
		WithRetention(8),
		WithPath(path),
	)

	Disable()
	assert.False(t, Enabled())
	fn(1)
	assert.False(t, loader.HasCapture("switch.fn", path))

	Enable()
	assert.True(t, Enabled())
	fn(2)
	assert.True(t, loader.HasCapture("switch.fn", path))
}

func TestWrap_WithEnabledFalse(t *testing.T) {
	path := t.TempDir()

	fn := Func(func(n int) int { return n },
		WithFunctionID("disabled.fn"),
		WithEnabled(false),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	assert.Equal(t, 9, fn(9))
	assert.False(t, loader.HasCapture("disabled.fn", path))
}

func TestContextOverrides(t *testing.T) {
	pathA := t.TempDir()
	pathB := t.TempDir()

	fn := Func(func(ctx context.Context, n int) int { return n * 2 },
		WithFunctionID("ctx.fn"),
		WithParamNames("n"),
		WithMode(store.ModeSlidingWindow),
		WithRetention(8),
		WithPath(pathA),
	)

	// Plain context: captured in the configured store, without the
	// context itself appearing among the arguments.
	assert.Equal(t, 4, fn(context.Background(), 2))
	args, _, err := loader.Load("ctx.fn", 0, pathA)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, 2, args[0])

	// A disable override suppresses just this call.
	off := false
	ctx := ContextWithOverrides(context.Background(), Overrides{Enabled: &off})
	fn(ctx, 3)
	l, err := loader.New(pathA)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Count("ctx.fn"))

	// A path override redirects just this call.
	ctx = ContextWithOverrides(context.Background(), Overrides{Path: pathB})
	fn(ctx, 5)
	assert.Equal(t, 1, l.Count("ctx.fn"))
	args, _, err = loader.Load("ctx.fn", 0, pathB)
	require.NoError(t, err)
	assert.Equal(t, 5, args[0])
}

func TestContextOverrides_EnableWinsOverProcessSwitch(t *testing.T) {
	defer Enable()
	path := t.TempDir()

	fn := Func(func(ctx context.Context, n int) int { return n },
		WithFunctionID("ctx.force"),
		WithMode(store.ModeFillAndStop),
		WithPath(path),
	)

	Disable()
	on := true
	fn(ContextWithOverrides(context.Background(), Overrides{Enabled: &on}), 1)
	assert.True(t, loader.HasCapture("ctx.force", path))
}

func TestFunctionID_DerivedFromRuntime(t *testing.T) {
	id := functionID(reflect.ValueOf(TestFunctionID_DerivedFromRuntime), nil)
	assert.Contains(t, id, "packages/capture.TestFunctionID_DerivedFromRuntime")
}

func TestWrap_MonitorCountsCaptures(t *testing.T) {
	path := t.TempDir()
	c := New(nil)

	fn := c.Wrap(func(n int) int { return n },
		WithFunctionID("monitored.fn"),
		WithMode(store.ModeSlidingWindow),
		WithRetention(4),
		WithPath(path),
	).(func(int) int)

	before := c.Monitor().Snapshot()
	fn(1)
	fn(2)
	after := c.Monitor().Snapshot()

	assert.Equal(t, before.Captures+2, after.Captures)
	assert.Greater(t, after.BytesWritten, before.BytesWritten)
}
