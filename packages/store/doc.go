// Package store persists captured function calls as a bounded,
// per-function slot log on disk.
//
// Each function gets its own directory under the store root, holding
// numbered slot files plus one index file that records the retention
// capacity, the retention mode and the list of live sequence ids. Slot
// files are published with a temp-write-then-rename so a reader can never
// observe a partially written slot; the index is only updated after the
// slot is visible, so a crash between the two steps leaves at worst an
// orphaned slot that a later Reclaim pass removes.
//
// Two retention modes bound growth. Fill-and-stop keeps the first K
// captures and turns later writes into no-ops; sliding-window always
// accepts a write and evicts the oldest slot once K is exceeded.
package store
