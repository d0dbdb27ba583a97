package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/snapcap/packages/filter"
	"github.com/abdul-hamid-achik/snapcap/packages/serializer"
	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

// seedCapture writes one capture directly through the store, the way the
// write side would.
func seedCapture(t *testing.T, path string, c *store.Capture) {
	t.Helper()
	st, err := store.New(path)
	require.NoError(t, err)
	_, err = st.Put(c, store.PutOptions{Capacity: 4, Mode: store.ModeSlidingWindow})
	require.NoError(t, err)
}

func encodeValue(t *testing.T, v any) ([]byte, string) {
	t.Helper()
	data, tag, err := serializer.Default().Serialize(v)
	require.NoError(t, err)
	return data, tag
}

func TestLoad(t *testing.T) {
	path := t.TempDir()

	user, tag := encodeValue(t, "alice")
	limit, _ := encodeValue(t, 25)
	seedCapture(t, path, &store.Capture{
		ID:         "c1",
		FunctionID: "api.search",
		Backend:    tag,
		Args:       []store.Value{{Name: "user", Data: user}},
		Kwargs:     map[string]store.Value{"limit": {Name: "limit", Data: limit}},
	})

	l, err := New(path)
	require.NoError(t, err)

	args, kwargs, err := l.Load("api.search", store.Latest())
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, "alice", args[0])
	require.Len(t, kwargs, 1)
	assert.Equal(t, 25, kwargs["limit"])
}

func TestLoad_NotFound(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)

	_, _, err = l.Load("never.captured", store.Latest())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.LoadReturns("never.captured", store.Latest())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.False(t, l.HasCapture("never.captured"))
	assert.Zero(t, l.Count("never.captured"))
}

func TestLoad_SentinelsPassThrough(t *testing.T) {
	path := t.TempDir()

	amount, tag := encodeValue(t, 100)
	seedCapture(t, path, &store.Capture{
		ID:         "c1",
		FunctionID: "billing.charge",
		Backend:    tag,
		Args: []store.Value{
			{Name: "amount", Data: amount},
			{Name: "card", Sentinel: store.SentinelRedacted},
			{Name: "invoice", Sentinel: store.SentinelTruncated},
		},
	})

	l, err := New(path)
	require.NoError(t, err)

	args, _, err := l.Load("billing.charge", store.Latest())
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, 100, args[0])
	assert.Equal(t, filter.Redacted, args[1])
	assert.Equal(t, filter.Truncated, args[2])
}

func TestLoad_UndecodableSlotIsHardError(t *testing.T) {
	path := t.TempDir()

	// A payload no backend understands: the slot exists, so this is a
	// load error the caller must surface, not a silent not-found.
	seedCapture(t, path, &store.Capture{
		ID:         "c1",
		FunctionID: "drifted.fn",
		Backend:    "gob",
		Args:       []store.Value{{Name: "arg0", Data: []byte("\x00\x01not a payload")}},
	})

	l, err := New(path)
	require.NoError(t, err)

	_, _, err = l.Load("drifted.fn", store.Latest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "drifted.fn", lerr.FunctionID)
	assert.Equal(t, "gob", lerr.Tag)
}

func TestLoadDict_OrdersPositionalFirst(t *testing.T) {
	path := t.TempDir()

	a, tag := encodeValue(t, "first")
	b, _ := encodeValue(t, "second")
	kw, _ := encodeValue(t, true)
	seedCapture(t, path, &store.Capture{
		ID:         "c1",
		FunctionID: "cli.run",
		Backend:    tag,
		Args: []store.Value{
			{Name: "cmd", Data: a},
			{Name: "target", Data: b},
		},
		Kwargs: map[string]store.Value{"verbose": {Name: "verbose", Data: kw}},
	})

	l, err := New(path)
	require.NoError(t, err)

	named, err := l.LoadDict("cli.run", store.Latest())
	require.NoError(t, err)
	require.Len(t, named, 3)
	assert.Equal(t, NamedArg{Name: "cmd", Value: "first"}, named[0])
	assert.Equal(t, NamedArg{Name: "target", Value: "second"}, named[1])
	assert.Equal(t, NamedArg{Name: "verbose", Value: true}, named[2])
}

func TestLoadReturns(t *testing.T) {
	path := t.TempDir()

	ret, tag := encodeValue(t, 42)
	seedCapture(t, path, &store.Capture{
		ID:         "c1",
		FunctionID: "math.answer",
		Backend:    tag,
		Returns:    []store.Value{{Name: "ret0", Data: ret}},
	})

	l, err := New(path)
	require.NoError(t, err)

	returns, err := l.LoadReturns("math.answer", store.Latest())
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.Equal(t, 42, returns[0])
}

func TestLoad_ByIndexSelectsOlderCaptures(t *testing.T) {
	path := t.TempDir()

	for _, payload := range []string{"old", "new"} {
		data, tag := encodeValue(t, payload)
		seedCapture(t, path, &store.Capture{
			ID:         payload,
			FunctionID: "ordered.fn",
			Backend:    tag,
			Args:       []store.Value{{Name: "arg0", Data: data}},
		})
	}

	args, _, err := Load("ordered.fn", 0, path)
	require.NoError(t, err)
	assert.Equal(t, "new", args[0])

	args, _, err = Load("ordered.fn", 1, path)
	require.NoError(t, err)
	assert.Equal(t, "old", args[0])

	assert.True(t, HasCapture("ordered.fn", path))
}
