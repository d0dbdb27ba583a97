package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultRetention is the slot capacity used when a put does not specify
// one.
const DefaultRetention = 2

const (
	slotSuffix    = ".capture"
	tmpSlotPrefix = ".slot-"
	// tmpStaleAfter is the age past which leftover temp files from a
	// crashed writer are removed by Reclaim.
	tmpStaleAfter = time.Minute
)

// ErrNotFound is returned when no slot matches a selector. Callers
// typically skip or fall back; it is an expected outcome, not a failure.
var ErrNotFound = errors.New("capture not found")

// ErrNoOp is returned by Put when a fill-and-stop log is already full and
// the write was intentionally skipped.
var ErrNoOp = errors.New("capture log full")

// StorageError wraps an I/O or allocation failure inside the store.
type StorageError struct {
	Op         string
	FunctionID string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("capture storage %s %s: %v", e.Op, e.FunctionID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Selector picks one slot out of a function's live set.
type Selector struct {
	nthNewest int
}

// Latest selects the slot with the maximum sequence id.
func Latest() Selector { return Selector{} }

// ByIndex selects the i-th most recent slot; 0 is the latest.
func ByIndex(i int) Selector { return Selector{nthNewest: i} }

// PutOptions carries the retention settings for a write. Mode is a
// required, explicit choice; there is deliberately no implied default.
type PutOptions struct {
	Capacity int
	Mode     Mode
}

// Store is a bounded per-function capture log rooted at a directory.
// All methods are safe for concurrent use, within and across processes
// sharing the same root.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens (and if needed creates) a store rooted at dir.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create store root: %w", err)
	}
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Put assigns the next sequence id for the capture's function, publishes
// the slot atomically, then updates the index. It returns ErrNoOp when a
// fill-and-stop log is full.
func (s *Store) Put(c *Capture, opts PutOptions) (uint64, error) {
	if c == nil || c.FunctionID == "" {
		return 0, &StorageError{Op: "put", FunctionID: "", Err: fmt.Errorf("capture needs a function id")}
	}
	if !opts.Mode.Valid() {
		return 0, &StorageError{Op: "put", FunctionID: c.FunctionID, Err: fmt.Errorf("retention mode %q is not valid", opts.Mode)}
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultRetention
	}

	dir, err := s.ensureDir(c.FunctionID)
	if err != nil {
		return 0, &StorageError{Op: "put", FunctionID: c.FunctionID, Err: err}
	}

	unlock, err := s.lock(dir)
	if err != nil {
		return 0, &StorageError{Op: "put", FunctionID: c.FunctionID, Err: err}
	}
	defer unlock()

	idx, err := readIndex(dir, c.FunctionID)
	if err != nil {
		return 0, &StorageError{Op: "put", FunctionID: c.FunctionID, Err: err}
	}

	if idx.Mode == ModeFillAndStop && len(idx.Live) >= opts.Capacity {
		return 0, ErrNoOp
	}

	seq := idx.Next
	c.Sequence = seq
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	if err := writeSlot(dir, seq, c); err != nil {
		return 0, &StorageError{Op: "put", FunctionID: c.FunctionID, Err: err}
	}

	// The slot is durably visible; only now may the index count it.
	idx.Next = seq + 1
	idx.Capacity = opts.Capacity
	idx.Mode = opts.Mode
	idx.Live = append(idx.Live, seq)

	if opts.Mode == ModeSlidingWindow {
		for len(idx.Live) > opts.Capacity {
			oldest := idx.Live[0]
			_ = os.Remove(filepath.Join(dir, slotName(oldest)))
			idx.Live = idx.Live[1:]
		}
	}

	if err := writeIndex(dir, idx); err != nil {
		return 0, &StorageError{Op: "put", FunctionID: c.FunctionID, Err: err}
	}
	return seq, nil
}

// Get returns the capture selected by sel, or ErrNotFound. Index entries
// pointing at missing or unreadable slots are skipped, never fatal.
func (s *Store) Get(functionID string, sel Selector) (*Capture, error) {
	if sel.nthNewest < 0 {
		return nil, ErrNotFound
	}

	infos, err := s.List(functionID)
	if err != nil {
		return nil, err
	}
	if sel.nthNewest >= len(infos) {
		return nil, ErrNotFound
	}
	return s.Read(functionID, infos[sel.nthNewest].Sequence)
}

// Read loads one slot by sequence id.
func (s *Store) Read(functionID string, seq uint64) (*Capture, error) {
	dir := s.functionDir(functionID)
	data, err := os.ReadFile(filepath.Join(dir, slotName(seq)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "read", FunctionID: functionID, Err: err}
	}

	var c Capture
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &StorageError{Op: "read", FunctionID: functionID, Err: fmt.Errorf("corrupt slot %d: %w", seq, err)}
	}
	return &c, nil
}

// List returns slot metadata for a function, newest first. Only indexed,
// readable slots appear: dangling index entries and orphaned slot files
// are silently skipped.
func (s *Store) List(functionID string) ([]SlotInfo, error) {
	dir := s.functionDir(functionID)
	idx, err := readIndex(dir, functionID)
	if err != nil {
		return nil, &StorageError{Op: "list", FunctionID: functionID, Err: err}
	}

	infos := make([]SlotInfo, 0, len(idx.Live))
	for i := len(idx.Live) - 1; i >= 0; i-- {
		seq := idx.Live[i]
		path := filepath.Join(dir, slotName(seq))

		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		c, err := s.Read(functionID, seq)
		if err != nil {
			continue
		}
		infos = append(infos, SlotInfo{
			Sequence:  seq,
			ID:        c.ID,
			Timestamp: c.Timestamp,
			Size:      stat.Size(),
			Path:      path,
		})
	}
	return infos, nil
}

// Evict removes the oldest live slot and its index entry as one logical
// step.
func (s *Store) Evict(functionID string) error {
	dir := s.functionDir(functionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}

	unlock, err := s.lock(dir)
	if err != nil {
		return &StorageError{Op: "evict", FunctionID: functionID, Err: err}
	}
	defer unlock()

	idx, err := readIndex(dir, functionID)
	if err != nil {
		return &StorageError{Op: "evict", FunctionID: functionID, Err: err}
	}
	if len(idx.Live) == 0 {
		return ErrNotFound
	}

	oldest := idx.Live[0]
	_ = os.Remove(filepath.Join(dir, slotName(oldest)))
	idx.Live = idx.Live[1:]

	if err := writeIndex(dir, idx); err != nil {
		return &StorageError{Op: "evict", FunctionID: functionID, Err: err}
	}
	return nil
}

// Clear removes every slot and the index for a function.
func (s *Store) Clear(functionID string) error {
	dir := s.functionDir(functionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	unlock, err := s.lock(dir)
	if err != nil {
		return &StorageError{Op: "clear", FunctionID: functionID, Err: err}
	}
	defer unlock()

	if err := os.RemoveAll(dir); err != nil {
		return &StorageError{Op: "clear", FunctionID: functionID, Err: err}
	}
	return nil
}

// Reclaim removes orphaned slot files (published but never indexed, for
// example after a crash between slot publish and index update) and stale
// temp files. It returns how many files were removed.
func (s *Store) Reclaim(functionID string) (int, error) {
	dir := s.functionDir(functionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	unlock, err := s.lock(dir)
	if err != nil {
		return 0, &StorageError{Op: "reclaim", FunctionID: functionID, Err: err}
	}
	defer unlock()

	idx, err := readIndex(dir, functionID)
	if err != nil {
		return 0, &StorageError{Op: "reclaim", FunctionID: functionID, Err: err}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, &StorageError{Op: "reclaim", FunctionID: functionID, Err: err}
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, slotSuffix):
			seq, err := parseSlotName(name)
			if err != nil || idx.contains(seq) {
				continue
			}
			if os.Remove(filepath.Join(dir, name)) == nil {
				removed++
			}
		case strings.HasPrefix(name, tmpSlotPrefix) || strings.HasPrefix(name, ".index-"):
			info, err := entry.Info()
			if err != nil || time.Since(info.ModTime()) < tmpStaleAfter {
				continue
			}
			if os.Remove(filepath.Join(dir, name)) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Functions lists every function id with a directory in the store,
// sorted by id.
func (s *Store) Functions() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &StorageError{Op: "functions", FunctionID: "", Err: err}
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idx, err := readIndex(filepath.Join(s.root, entry.Name()), "")
		if err != nil || idx.FunctionID == "" {
			continue
		}
		ids = append(ids, idx.FunctionID)
	}
	return ids, nil
}

// FunctionStats summarizes one function's live slots.
type FunctionStats struct {
	FunctionID string
	Slots      int
	Bytes      int64
	Latest     time.Time
}

// Stats summarizes the whole store.
type Stats struct {
	Functions   int
	Slots       int
	Bytes       int64
	PerFunction []FunctionStats
}

// Stats walks every function and totals live slot counts and sizes.
func (s *Store) Stats() (*Stats, error) {
	ids, err := s.Functions()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Functions: len(ids)}
	for _, id := range ids {
		infos, err := s.List(id)
		if err != nil {
			continue
		}
		fs := FunctionStats{FunctionID: id, Slots: len(infos)}
		for _, info := range infos {
			fs.Bytes += info.Size
		}
		if len(infos) > 0 {
			fs.Latest = infos[0].Timestamp
		}
		stats.Slots += fs.Slots
		stats.Bytes += fs.Bytes
		stats.PerFunction = append(stats.PerFunction, fs)
	}
	return stats, nil
}

// lock serializes writers on one function directory: an in-process mutex
// keeps goroutines from spinning on the cross-process lock file.
func (s *Store) lock(dir string) (func(), error) {
	s.mu.Lock()
	m, ok := s.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		s.locks[dir] = m
	}
	s.mu.Unlock()

	m.Lock()
	fl, err := acquireLock(dir)
	if err != nil {
		m.Unlock()
		return nil, err
	}
	return func() {
		fl.release()
		m.Unlock()
	}, nil
}

func (s *Store) ensureDir(functionID string) (string, error) {
	dir := s.functionDir(functionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create function directory: %w", err)
	}
	return dir, nil
}

// functionDir maps a function id to its directory. Ids that survive
// sanitization unchanged map directly; anything else gets a short hash
// suffix so distinct ids can never collide on one directory.
func (s *Store) functionDir(functionID string) string {
	sanitized := sanitizeID(functionID)
	if sanitized != functionID {
		sum := sha256.Sum256([]byte(functionID))
		sanitized += "-" + hex.EncodeToString(sum[:4])
	}
	return filepath.Join(s.root, sanitized)
}

func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func slotName(seq uint64) string {
	return fmt.Sprintf("%08d%s", seq, slotSuffix)
}

func parseSlotName(name string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSuffix(name, slotSuffix), 10, 64)
}

// writeSlot publishes one slot atomically: temp write, fsync, rename.
func writeSlot(dir string, seq uint64, c *Capture) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode capture: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpSlotPrefix+"*")
	if err != nil {
		return fmt.Errorf("cannot create temp slot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot write temp slot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot sync temp slot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot close temp slot: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, slotName(seq))); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot publish slot: %w", err)
	}
	return nil
}
