package mempoolfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"

	"github.com/mempooledit/mempooledit/util/binaryserializer"
)

// varIntProtocolVersion is the protocol version handed to the wire package's
// CompactSize helpers. The snapshot format's varints are version-independent.
const varIntProtocolVersion uint32 = 0

// decodeEntry decodes a single pool entry: the transaction payload followed
// by its admission time and fee delta, each 8 bytes. The payload is
// self-delimiting, so the reader is left positioned exactly after the entry's
// last byte.
func decodeEntry(r io.Reader) (*PoolEntry, error) {
	var msgTx wire.MsgTx
	err := msgTx.Deserialize(r)
	if err != nil {
		return nil, decodeErrorWrap("entry", "malformed transaction payload", err)
	}

	time, err := binaryserializer.Int64(r)
	if err != nil {
		return nil, decodeErrorWrap("entry", "short read on admission time", err)
	}

	feeDelta, err := binaryserializer.Int64(r)
	if err != nil {
		return nil, decodeErrorWrap("entry", "short read on fee delta", err)
	}

	return &PoolEntry{Tx: btcutil.NewTx(&msgTx), Time: time, FeeDelta: feeDelta}, nil
}

// encodeEntry is the exact inverse of decodeEntry.
func encodeEntry(w io.Writer, entry *PoolEntry) error {
	err := entry.Tx.MsgTx().Serialize(w)
	if err != nil {
		return errors.WithStack(err)
	}
	err = binaryserializer.PutInt64(w, entry.Time)
	if err != nil {
		return err
	}
	return binaryserializer.PutInt64(w, entry.FeeDelta)
}

// Deserialize decodes a whole snapshot from r. Any short read or malformed
// sub-record fails the entire decode; no partial Snapshot is ever returned.
func Deserialize(r io.Reader) (*Snapshot, error) {
	// The version determines whether the rest of the file is masked with an
	// obfuscation key, so it gates everything else.
	version, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, decodeErrorWrap("snapshot", "short read on version", err)
	}
	switch version {
	case DumpVersionPlain:
	case DumpVersionMasked:
		return nil, decodeError("snapshot", fmt.Sprintf(
			"version %d snapshots are masked with an obfuscation key and are not supported",
			DumpVersionMasked))
	default:
		return nil, decodeError("snapshot", fmt.Sprintf(
			"unsupported snapshot version %d, only version %d is supported",
			version, DumpVersionPlain))
	}

	snapshot := NewSnapshot()
	snapshot.Version = version

	entryCount, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, decodeErrorWrap("snapshot", "short read on entry count", err)
	}
	for i := uint64(0); i < entryCount; i++ {
		entry, err := decodeEntry(r)
		if err != nil {
			return nil, err
		}
		snapshot.AppendEntry(entry)
	}

	deltaCount, err := wire.ReadVarInt(r, varIntProtocolVersion)
	if err != nil {
		return nil, decodeErrorWrap("snapshot", "malformed delta-map count", err)
	}
	for i := uint64(0); i < deltaCount; i++ {
		var txID chainhash.Hash
		_, err := io.ReadFull(r, txID[:])
		if err != nil {
			return nil, decodeErrorWrap("snapshot", "short read on delta-map transaction ID", err)
		}
		delta, err := binaryserializer.Int64(r)
		if err != nil {
			return nil, decodeErrorWrap("snapshot", "short read on delta-map fee delta", err)
		}
		snapshot.Deltas.Put(txID, delta)
	}

	unbroadcastCount, err := wire.ReadVarInt(r, varIntProtocolVersion)
	if err != nil {
		return nil, decodeErrorWrap("snapshot", "malformed unbroadcast count", err)
	}
	for i := uint64(0); i < unbroadcastCount; i++ {
		var txID chainhash.Hash
		_, err := io.ReadFull(r, txID[:])
		if err != nil {
			return nil, decodeErrorWrap("snapshot", "short read on unbroadcast transaction ID", err)
		}
		snapshot.Unbroadcast.Add(txID)
	}

	return snapshot, nil
}

// Load reads and decodes the snapshot file at the given path.
func Load(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()

	return Deserialize(bufio.NewReader(file))
}

// Serialize encodes the snapshot to w: version, entry count and entries in
// sequence order, then the delta map and the unbroadcast set, each prefixed
// with a CompactSize count and emitted in insertion order. The output is a
// pure function of the snapshot's contents and insertion history.
func (s *Snapshot) Serialize(w io.Writer) error {
	err := binaryserializer.PutUint64(w, s.Version)
	if err != nil {
		return err
	}

	err = binaryserializer.PutUint64(w, uint64(len(s.Entries)))
	if err != nil {
		return err
	}
	for _, entry := range s.Entries {
		err = encodeEntry(w, entry)
		if err != nil {
			return err
		}
	}

	err = wire.WriteVarInt(w, varIntProtocolVersion, uint64(s.Deltas.Len()))
	if err != nil {
		return errors.WithStack(err)
	}
	err = s.Deltas.ForEach(func(txID chainhash.Hash, delta int64) error {
		_, err := w.Write(txID[:])
		if err != nil {
			return errors.WithStack(err)
		}
		return binaryserializer.PutInt64(w, delta)
	})
	if err != nil {
		return err
	}

	err = wire.WriteVarInt(w, varIntProtocolVersion, uint64(s.Unbroadcast.Len()))
	if err != nil {
		return errors.WithStack(err)
	}
	return s.Unbroadcast.ForEach(func(txID chainhash.Hash) error {
		_, err := w.Write(txID[:])
		return errors.WithStack(err)
	})
}

// Bytes returns the serialized snapshot as a byte slice.
func (s *Snapshot) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := s.Serialize(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save serializes the snapshot and writes it to the given path, truncating
// any existing file. On write failure the destination's prior contents are
// undefined.
func (s *Snapshot) Save(path string) error {
	serialized, err := s.Bytes()
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = file.Write(serialized)
	if err != nil {
		_ = file.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(file.Close())
}
