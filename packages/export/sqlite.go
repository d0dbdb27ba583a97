// Package export writes captures out of the file store into other
// formats for offline analysis.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/snapcap/packages/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id          TEXT PRIMARY KEY,
	function_id TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	backend     TEXT NOT NULL,
	captured_at TEXT NOT NULL,
	args        TEXT NOT NULL,
	kwargs      TEXT,
	returns     TEXT,
	UNIQUE (function_id, sequence)
);
CREATE INDEX IF NOT EXISTS idx_captures_function ON captures (function_id);
`

// ToSQLite copies every live capture in the store into a SQLite database
// at dbPath, creating the schema if needed. Re-exporting is idempotent:
// rows are keyed by (function_id, sequence) and replaced on conflict.
// It returns the number of captures written.
func ToSQLite(ctx context.Context, st *store.Store, dbPath string) (int, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return 0, fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("cannot create schema: %w", err)
	}

	functions, err := st.Functions()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO captures
			(id, function_id, sequence, backend, captured_at, args, kwargs, returns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("cannot prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, fn := range functions {
		infos, err := st.List(fn)
		if err != nil {
			continue
		}
		for _, info := range infos {
			c, err := st.Read(fn, info.Sequence)
			if err != nil {
				continue
			}
			if err := insertCapture(ctx, stmt, c); err != nil {
				return written, fmt.Errorf("cannot export %s/%d: %w", fn, c.Sequence, err)
			}
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("cannot commit export: %w", err)
	}
	return written, nil
}

func insertCapture(ctx context.Context, stmt *sql.Stmt, c *store.Capture) error {
	args, err := json.Marshal(c.Args)
	if err != nil {
		return err
	}

	var kwargs, returns any
	if len(c.Kwargs) > 0 {
		data, err := json.Marshal(c.Kwargs)
		if err != nil {
			return err
		}
		kwargs = string(data)
	}
	if len(c.Returns) > 0 {
		data, err := json.Marshal(c.Returns)
		if err != nil {
			return err
		}
		returns = string(data)
	}

	_, err = stmt.ExecContext(ctx,
		c.ID, c.FunctionID, int64(c.Sequence), c.Backend,
		c.Timestamp.Format(time.RFC3339Nano), string(args), kwargs, returns)
	return err
}
