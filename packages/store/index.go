package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const indexFileName = "index.json"

// Index is the per-function retention record: capacity, mode and the
// ordered list of live sequence ids. It is owned exclusively by the
// Store and only ever written while the function's directory lock is
// held.
type Index struct {
	FunctionID string   `json:"function_id"`
	Capacity   int      `json:"capacity"`
	Mode       Mode     `json:"mode"`
	Next       uint64   `json:"next_sequence"`
	Live       []uint64 `json:"live"`
}

// IndexSchema is the JSON schema an index file must satisfy. The
// validate command checks stores against it.
const IndexSchema = `{
  "type": "object",
  "required": ["function_id", "capacity", "mode", "next_sequence", "live"],
  "properties": {
    "function_id": {"type": "string", "minLength": 1},
    "capacity": {"type": "integer", "minimum": 1},
    "mode": {"enum": ["fill-and-stop", "sliding-window"]},
    "next_sequence": {"type": "integer", "minimum": 1},
    "live": {
      "type": "array",
      "items": {"type": "integer", "minimum": 1}
    }
  }
}`

// contains reports whether seq is live.
func (idx *Index) contains(seq uint64) bool {
	for _, s := range idx.Live {
		if s == seq {
			return true
		}
	}
	return false
}

// readIndex loads the index file from a function directory. A missing
// file yields a fresh index so first writes need no separate init step.
func readIndex(dir, functionID string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if os.IsNotExist(err) {
		return &Index{FunctionID: functionID, Next: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("corrupt index file in %s: %w", dir, err)
	}
	if idx.Next == 0 {
		idx.Next = 1
	}
	return &idx, nil
}

// writeIndex atomically replaces the index file: written to a temp file
// in the same directory, then renamed into place.
func writeIndex(dir string, idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("cannot create temp index: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot write temp index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot sync temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot close temp index: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, indexFileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot publish index: %w", err)
	}
	return nil
}
