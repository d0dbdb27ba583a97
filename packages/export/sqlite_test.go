package export

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	opts := store.PutOptions{Capacity: 4, Mode: store.ModeFillAndStop}
	captures := []*store.Capture{
		{
			ID:         "cap-1",
			FunctionID: "api.search",
			Backend:    "json",
			Args:       []store.Value{{Name: "query", Data: []byte(`"golang"`)}},
			Kwargs:     map[string]store.Value{"limit": {Name: "limit", Data: []byte(`25`)}},
		},
		{
			ID:         "cap-2",
			FunctionID: "api.search",
			Backend:    "json",
			Args:       []store.Value{{Name: "query", Data: []byte(`"sqlite"`)}},
		},
		{
			ID:         "cap-3",
			FunctionID: "math.div",
			Backend:    "json",
			Args: []store.Value{
				{Name: "a", Data: []byte(`10`)},
				{Name: "b", Data: []byte(`2`)},
			},
			Returns: []store.Value{{Name: "ret0", Data: []byte(`5`)}},
		},
	}
	for _, c := range captures {
		_, err := st.Put(c, opts)
		require.NoError(t, err)
	}
	return st
}

func TestToSQLite(t *testing.T) {
	st := seedStore(t)
	dbPath := filepath.Join(t.TempDir(), "captures.db")

	written, err := ToSQLite(context.Background(), st, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var total int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&total))
	assert.Equal(t, 3, total)

	var backend, args string
	var kwargs, returns sql.NullString
	row := db.QueryRow(`SELECT backend, args, kwargs, returns FROM captures WHERE id = ?`, "cap-1")
	require.NoError(t, row.Scan(&backend, &args, &kwargs, &returns))
	assert.Equal(t, "json", backend)
	assert.Contains(t, args, `"query"`)
	assert.True(t, kwargs.Valid)
	assert.Contains(t, kwargs.String, `"limit"`)
	assert.False(t, returns.Valid)

	row = db.QueryRow(`SELECT returns FROM captures WHERE id = ?`, "cap-3")
	require.NoError(t, row.Scan(&returns))
	assert.True(t, returns.Valid)
	assert.Contains(t, returns.String, `"ret0"`)
}

func TestToSQLite_Idempotent(t *testing.T) {
	st := seedStore(t)
	dbPath := filepath.Join(t.TempDir(), "captures.db")

	_, err := ToSQLite(context.Background(), st, dbPath)
	require.NoError(t, err)
	written, err := ToSQLite(context.Background(), st, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var total int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&total))
	assert.Equal(t, 3, total)
}

func TestToSQLite_EmptyStore(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	written, err := ToSQLite(context.Background(), st, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Zero(t, written)
}
