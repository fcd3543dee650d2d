package mempoolfile

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DeltaMap maps transaction IDs to fee-delta overrides. Iteration follows
// insertion order, so serializing a freshly decoded map reproduces the
// on-disk ordering regardless of Go's randomized map iteration.
type DeltaMap struct {
	order  []chainhash.Hash
	deltas map[chainhash.Hash]int64
}

// NewDeltaMap returns an empty DeltaMap.
func NewDeltaMap() *DeltaMap {
	return &DeltaMap{deltas: make(map[chainhash.Hash]int64)}
}

// Put sets the fee delta for the given transaction ID. When the ID is already
// present the last write wins, but the ID keeps its original position in
// iteration order.
func (dm *DeltaMap) Put(txID chainhash.Hash, delta int64) {
	if _, ok := dm.deltas[txID]; !ok {
		dm.order = append(dm.order, txID)
	}
	dm.deltas[txID] = delta
}

// Get returns the fee delta for the given transaction ID and whether the ID
// is present.
func (dm *DeltaMap) Get(txID chainhash.Hash) (int64, bool) {
	delta, ok := dm.deltas[txID]
	return delta, ok
}

// Len returns the number of IDs in the map.
func (dm *DeltaMap) Len() int {
	return len(dm.order)
}

// ForEach calls fn for every (ID, delta) pair in insertion order. It stops at
// and returns the first error fn returns.
func (dm *DeltaMap) ForEach(fn func(txID chainhash.Hash, delta int64) error) error {
	for _, txID := range dm.order {
		err := fn(txID, dm.deltas[txID])
		if err != nil {
			return err
		}
	}
	return nil
}

// UnbroadcastSet is the set of transaction IDs not yet relayed to peers.
// Like DeltaMap it iterates in insertion order.
type UnbroadcastSet struct {
	order   []chainhash.Hash
	members map[chainhash.Hash]struct{}
}

// NewUnbroadcastSet returns an empty UnbroadcastSet.
func NewUnbroadcastSet() *UnbroadcastSet {
	return &UnbroadcastSet{members: make(map[chainhash.Hash]struct{})}
}

// Add inserts the given transaction ID into the set. Adding an ID that is
// already a member is a no-op and does not change its position.
func (us *UnbroadcastSet) Add(txID chainhash.Hash) {
	if _, ok := us.members[txID]; ok {
		return
	}
	us.members[txID] = struct{}{}
	us.order = append(us.order, txID)
}

// Contains returns whether the given transaction ID is a member of the set.
func (us *UnbroadcastSet) Contains(txID chainhash.Hash) bool {
	_, ok := us.members[txID]
	return ok
}

// Len returns the number of IDs in the set.
func (us *UnbroadcastSet) Len() int {
	return len(us.order)
}

// ForEach calls fn for every ID in insertion order. It stops at and returns
// the first error fn returns.
func (us *UnbroadcastSet) ForEach(fn func(txID chainhash.Hash) error) error {
	for _, txID := range us.order {
		err := fn(txID)
		if err != nil {
			return err
		}
	}
	return nil
}
