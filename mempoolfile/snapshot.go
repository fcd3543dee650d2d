// Package mempoolfile reads and writes the mempool snapshot file a node uses
// to persist its pending-transaction pool across restarts. Only the plain
// (unmasked) layout is supported; re-serializing an unedited snapshot
// reproduces the original file byte for byte.
package mempoolfile

import (
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
)

const (
	// DumpVersionPlain is the snapshot version whose contents are stored
	// unmasked. This is the only version this package decodes.
	DumpVersionPlain uint64 = 1

	// DumpVersionMasked is the snapshot version whose contents are masked
	// with an obfuscation key. Files carrying it are rejected outright.
	DumpVersionMasked uint64 = 2
)

// PoolEntry is one persisted pending transaction: the transaction itself plus
// its admission time and any user-assigned fee-priority adjustment. The entry
// owns its transaction; callers must not mutate it in place.
type PoolEntry struct {
	Tx       *btcutil.Tx
	Time     int64
	FeeDelta int64
}

// Snapshot is the full decoded contents of one mempool snapshot file. Entries
// keeps the file's order; Deltas and Unbroadcast keep the file's order via
// their insertion-ordered backing structures.
//
// A Snapshot is not safe for concurrent use. The editing session is expected
// to be its single owner.
type Snapshot struct {
	Version     uint64
	Entries     []*PoolEntry
	Deltas      *DeltaMap
	Unbroadcast *UnbroadcastSet
}

// NewSnapshot returns an empty plain-version Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version:     DumpVersionPlain,
		Deltas:      NewDeltaMap(),
		Unbroadcast: NewUnbroadcastSet(),
	}
}

// AppendEntry adds the given entry to the end of the entry sequence.
func (s *Snapshot) AppendEntry(entry *PoolEntry) {
	s.Entries = append(s.Entries, entry)
}

// RemoveEntry removes the entry at the given index, leaving the order of the
// remaining entries unchanged.
func (s *Snapshot) RemoveEntry(index int) error {
	if index < 0 || index >= len(s.Entries) {
		return errors.Errorf("entry index %d out of range [0, %d)", index, len(s.Entries))
	}
	s.Entries = append(s.Entries[:index], s.Entries[index+1:]...)
	return nil
}
