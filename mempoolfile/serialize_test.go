package mempoolfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// testTx returns a small transaction whose serialization is deterministic.
// seed varies the previous outpoint so distinct entries get distinct IDs.
func testTx(seed byte, value int64) *wire.MsgTx {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	prevOut := wire.NewOutPoint(&chainhash.Hash{seed}, uint32(seed))
	msgTx.AddTxIn(wire.NewTxIn(prevOut, []byte{0x04, 0x31, 0xdc, 0x00, 0x1b, 0x01, 0x62}, nil))
	msgTx.AddTxOut(wire.NewTxOut(value, []byte{0x51}))
	return msgTx
}

func serializeTx(t *testing.T, msgTx *wire.MsgTx) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := msgTx.Serialize(&buf)
	if err != nil {
		t.Fatalf("Serialize: unexpected error: %v", err)
	}
	return buf.Bytes()
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendInt64(b []byte, v int64) []byte {
	return appendUint64(b, uint64(v))
}

type testDelta struct {
	txID  chainhash.Hash
	delta int64
}

type testEntry struct {
	tx       *wire.MsgTx
	time     int64
	feeDelta int64
}

// buildSnapshotBytes assembles a snapshot file independently of the
// production encoder so that round-trip tests exercise both directions.
func buildSnapshotBytes(t *testing.T, version uint64, entries []testEntry,
	deltas []testDelta, unbroadcast []chainhash.Hash) []byte {

	t.Helper()
	b := appendUint64(nil, version)
	b = appendUint64(b, uint64(len(entries)))
	for _, entry := range entries {
		b = append(b, serializeTx(t, entry.tx)...)
		b = appendInt64(b, entry.time)
		b = appendInt64(b, entry.feeDelta)
	}
	var varIntBuf bytes.Buffer
	err := wire.WriteVarInt(&varIntBuf, 0, uint64(len(deltas)))
	if err != nil {
		t.Fatalf("WriteVarInt: unexpected error: %v", err)
	}
	b = append(b, varIntBuf.Bytes()...)
	for _, delta := range deltas {
		b = append(b, delta.txID[:]...)
		b = appendInt64(b, delta.delta)
	}
	varIntBuf.Reset()
	err = wire.WriteVarInt(&varIntBuf, 0, uint64(len(unbroadcast)))
	if err != nil {
		t.Fatalf("WriteVarInt: unexpected error: %v", err)
	}
	b = append(b, varIntBuf.Bytes()...)
	for _, txID := range unbroadcast {
		b = append(b, txID[:]...)
	}
	return b
}

func writeTempSnapshot(t *testing.T, serialized []byte) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "mempoolfile")
	if err != nil {
		t.Fatalf("TempDir: unexpected error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "mempool.dat")
	err = ioutil.WriteFile(path, serialized, 0600)
	if err != nil {
		t.Fatalf("WriteFile: unexpected error: %v", err)
	}
	return path
}

// TestLoadRoundTrip asserts the round-trip identity: re-serializing a loaded
// snapshot reproduces the file's bytes exactly, verified by content hash as
// well as direct comparison. Serialization is repeated to catch ordering that
// depends on anything but insertion history.
func TestLoadRoundTrip(t *testing.T) {
	id1 := chainhash.Hash{0xaa, 0x01}
	id2 := chainhash.Hash{0xbb, 0x02}
	id3 := chainhash.Hash{0xcc, 0x03}
	original := buildSnapshotBytes(t, DumpVersionPlain,
		[]testEntry{
			{tx: testTx(1, 5000000000), time: 1700000000, feeDelta: 0},
			{tx: testTx(2, 2500000000), time: 1700000100, feeDelta: -1000},
			{tx: testTx(3, 100000), time: 1700000200, feeDelta: 42},
		},
		[]testDelta{
			{txID: id2, delta: -500},
			{txID: id1, delta: 12345},
		},
		[]chainhash.Hash{id3, id1},
	)
	path := writeTempSnapshot(t, original)

	snapshot, err := Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %+v", err)
	}
	if len(snapshot.Entries) != 3 {
		t.Fatalf("Load: got %d entries, want 3", len(snapshot.Entries))
	}
	if snapshot.Deltas.Len() != 2 {
		t.Fatalf("Load: got %d deltas, want 2", snapshot.Deltas.Len())
	}
	if snapshot.Unbroadcast.Len() != 2 {
		t.Fatalf("Load: got %d unbroadcast IDs, want 2", snapshot.Unbroadcast.Len())
	}

	for i := 0; i < 3; i++ {
		serialized, err := snapshot.Bytes()
		if err != nil {
			t.Fatalf("Bytes: unexpected error: %+v", err)
		}
		if sha256.Sum256(serialized) != sha256.Sum256(original) {
			t.Fatalf("round trip %d: content hash mismatch:\ngot %s\nwant %s",
				i, spew.Sdump(serialized), spew.Sdump(original))
		}
		if !bytes.Equal(serialized, original) {
			t.Fatalf("round trip %d: bytes differ", i)
		}
	}
}

// TestLoadAcrossProcessesWouldDiffer guards the ordering hazard directly: a
// second, independent decode of the same file must serialize identically to
// the first.
func TestRoundTripAcrossFreshDecodes(t *testing.T) {
	id1 := chainhash.Hash{0x11}
	id2 := chainhash.Hash{0x22}
	id3 := chainhash.Hash{0x33}
	original := buildSnapshotBytes(t, DumpVersionPlain, nil,
		[]testDelta{{txID: id3, delta: 1}, {txID: id1, delta: 2}, {txID: id2, delta: 3}},
		[]chainhash.Hash{id2, id3, id1},
	)
	path := writeTempSnapshot(t, original)

	for i := 0; i < 5; i++ {
		snapshot, err := Load(path)
		if err != nil {
			t.Fatalf("Load %d: unexpected error: %+v", i, err)
		}
		serialized, err := snapshot.Bytes()
		if err != nil {
			t.Fatalf("Bytes %d: unexpected error: %+v", i, err)
		}
		if !bytes.Equal(serialized, original) {
			t.Fatalf("decode %d: serialization depends on more than insertion order", i)
		}
	}
}

// TestVersionGate asserts that only the plain version is decoded and that the
// masked version is rejected rather than partially parsed.
func TestVersionGate(t *testing.T) {
	tests := []struct {
		name    string
		version uint64
	}{
		{name: "masked version", version: DumpVersionMasked},
		{name: "unknown version", version: 99},
		{name: "zero version", version: 0},
	}

	for _, test := range tests {
		serialized := buildSnapshotBytes(t, test.version, nil, nil, nil)
		snapshot, err := Deserialize(bytes.NewReader(serialized))
		if err == nil {
			t.Errorf("%s: expected an error, got snapshot %s", test.name, spew.Sdump(snapshot))
			continue
		}
		if !IsDecodeError(err) {
			t.Errorf("%s: expected a DecodeError, got %+v", test.name, err)
		}
		if snapshot != nil {
			t.Errorf("%s: expected no snapshot on failure", test.name)
		}
	}
}

// TestMalformedInputRejection asserts that truncation anywhere in the file
// fails the whole decode with a DecodeError and no partial snapshot.
func TestMalformedInputRejection(t *testing.T) {
	id := chainhash.Hash{0x07}
	full := buildSnapshotBytes(t, DumpVersionPlain,
		[]testEntry{{tx: testTx(1, 1000), time: 1700000000, feeDelta: -5}},
		[]testDelta{{txID: id, delta: -500}},
		[]chainhash.Hash{id},
	)

	tests := []struct {
		name       string
		serialized []byte
	}{
		{name: "empty file", serialized: nil},
		{name: "truncated version", serialized: full[:4]},
		{name: "truncated entry count", serialized: full[:12]},
		{name: "truncated mid payload", serialized: full[:20]},
		{name: "truncated mid time field", serialized: full[:90]},
		{name: "truncated delta map ID", serialized: full[:len(full)-60]},
		{name: "truncated delta map value", serialized: full[:len(full)-40]},
		{name: "truncated unbroadcast section", serialized: full[:len(full)-10]},
	}

	for _, test := range tests {
		snapshot, err := Deserialize(bytes.NewReader(test.serialized))
		if err == nil {
			t.Errorf("%s: expected an error, got snapshot %s", test.name, spew.Sdump(snapshot))
			continue
		}
		if snapshot != nil {
			t.Errorf("%s: expected no snapshot on failure", test.name)
		}
	}

	// An entry count that promises more entries than the file holds must fail
	// the same way.
	overCount := buildSnapshotBytes(t, DumpVersionPlain,
		[]testEntry{{tx: testTx(1, 1000), time: 1, feeDelta: 2}}, nil, nil)
	binary.LittleEndian.PutUint64(overCount[8:16], 1000)
	snapshot, err := Deserialize(bytes.NewReader(overCount))
	if err == nil {
		t.Fatalf("over-count: expected an error, got snapshot %s", spew.Sdump(snapshot))
	}
	if !IsDecodeError(err) {
		t.Fatalf("over-count: expected a DecodeError, got %+v", err)
	}
}

// TestConcreteScenario pins the exact byte layout of a minimal snapshot:
// no entries, a single fee delta and an empty unbroadcast set.
func TestConcreteScenario(t *testing.T) {
	var id chainhash.Hash
	id[0] = 0x5a
	serialized := buildSnapshotBytes(t, DumpVersionPlain, nil,
		[]testDelta{{txID: id, delta: -500}}, nil)

	// version + entry count + varint(1) + ID + delta + varint(0)
	wantLen := 8 + 8 + 1 + 32 + 8 + 1
	if len(serialized) != wantLen {
		t.Fatalf("fixture length %d, want %d", len(serialized), wantLen)
	}

	snapshot, err := Deserialize(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("Deserialize: unexpected error: %+v", err)
	}
	if len(snapshot.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(snapshot.Entries))
	}
	if snapshot.Unbroadcast.Len() != 0 {
		t.Errorf("got %d unbroadcast IDs, want 0", snapshot.Unbroadcast.Len())
	}
	if snapshot.Deltas.Len() != 1 {
		t.Fatalf("got %d deltas, want 1", snapshot.Deltas.Len())
	}
	delta, ok := snapshot.Deltas.Get(id)
	if !ok || delta != -500 {
		t.Fatalf("delta for %s: got (%d, %t), want (-500, true)", id, delta, ok)
	}

	reserialized, err := snapshot.Bytes()
	if err != nil {
		t.Fatalf("Bytes: unexpected error: %+v", err)
	}
	if !bytes.Equal(reserialized, serialized) {
		t.Fatalf("re-serialization mismatch:\ngot %s\nwant %s",
			spew.Sdump(reserialized), spew.Sdump(serialized))
	}
}

// TestEntryOrderPreservation asserts entry i before a no-op load/serialize
// cycle equals entry i after it, for all i.
func TestEntryOrderPreservation(t *testing.T) {
	entries := []testEntry{
		{tx: testTx(9, 900), time: 9, feeDelta: 9},
		{tx: testTx(3, 300), time: 3, feeDelta: 3},
		{tx: testTx(7, 700), time: 7, feeDelta: 7},
	}
	serialized := buildSnapshotBytes(t, DumpVersionPlain, entries, nil, nil)
	snapshot, err := Deserialize(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("Deserialize: unexpected error: %+v", err)
	}

	for i, entry := range entries {
		wantID := entry.tx.TxHash()
		gotID := snapshot.Entries[i].Tx.MsgTx().TxHash()
		if gotID != wantID {
			t.Errorf("entry %d: got %s, want %s", i, gotID, wantID)
		}
		if snapshot.Entries[i].Time != entry.time {
			t.Errorf("entry %d: got time %d, want %d", i, snapshot.Entries[i].Time, entry.time)
		}
		if snapshot.Entries[i].FeeDelta != entry.feeDelta {
			t.Errorf("entry %d: got fee delta %d, want %d",
				i, snapshot.Entries[i].FeeDelta, entry.feeDelta)
		}
	}

	reserialized, err := snapshot.Bytes()
	if err != nil {
		t.Fatalf("Bytes: unexpected error: %+v", err)
	}
	if !bytes.Equal(reserialized, serialized) {
		t.Fatal("no-op cycle changed the serialized bytes")
	}
}

// TestDuplicateDeltaLastWins pins the duplicate-key policy: the last value
// wins, and the ID keeps its first position in the serialization order.
func TestDuplicateDeltaLastWins(t *testing.T) {
	dup := chainhash.Hash{0x01}
	other := chainhash.Hash{0x02}
	serialized := buildSnapshotBytes(t, DumpVersionPlain, nil,
		[]testDelta{
			{txID: dup, delta: 100},
			{txID: other, delta: 200},
			{txID: dup, delta: 300},
		}, nil)

	snapshot, err := Deserialize(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("Deserialize: unexpected error: %+v", err)
	}
	if snapshot.Deltas.Len() != 2 {
		t.Fatalf("got %d deltas, want 2", snapshot.Deltas.Len())
	}
	delta, _ := snapshot.Deltas.Get(dup)
	if delta != 300 {
		t.Errorf("duplicate ID: got delta %d, want 300 (last write wins)", delta)
	}

	var gotOrder []chainhash.Hash
	_ = snapshot.Deltas.ForEach(func(txID chainhash.Hash, delta int64) error {
		gotOrder = append(gotOrder, txID)
		return nil
	})
	wantOrder := []chainhash.Hash{dup, other}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("order[%d]: got %s, want %s", i, gotOrder[i], wantOrder[i])
		}
	}
}

// TestDuplicateUnbroadcastNoOp pins the set policy: re-adding an ID is a
// no-op.
func TestDuplicateUnbroadcastNoOp(t *testing.T) {
	dup := chainhash.Hash{0x0f}
	serialized := buildSnapshotBytes(t, DumpVersionPlain, nil, nil,
		[]chainhash.Hash{dup, dup, dup})

	snapshot, err := Deserialize(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("Deserialize: unexpected error: %+v", err)
	}
	if snapshot.Unbroadcast.Len() != 1 {
		t.Fatalf("got %d unbroadcast IDs, want 1", snapshot.Unbroadcast.Len())
	}
	if !snapshot.Unbroadcast.Contains(dup) {
		t.Fatal("set lost its member")
	}
}

// TestRemoveEntry asserts removal takes out exactly one entry, leaving order
// otherwise unchanged.
func TestRemoveEntry(t *testing.T) {
	snapshot := NewSnapshot()
	var wantIDs []chainhash.Hash
	for seed := byte(1); seed <= 4; seed++ {
		msgTx := testTx(seed, int64(seed)*100)
		entry, err := decodeEntryFromTx(msgTx, int64(seed), 0)
		if err != nil {
			t.Fatalf("decodeEntryFromTx: unexpected error: %+v", err)
		}
		snapshot.AppendEntry(entry)
		wantIDs = append(wantIDs, msgTx.TxHash())
	}

	err := snapshot.RemoveEntry(1)
	if err != nil {
		t.Fatalf("RemoveEntry: unexpected error: %+v", err)
	}
	wantIDs = append(wantIDs[:1], wantIDs[2:]...)
	if len(snapshot.Entries) != len(wantIDs) {
		t.Fatalf("got %d entries, want %d", len(snapshot.Entries), len(wantIDs))
	}
	for i, wantID := range wantIDs {
		if *snapshot.Entries[i].Tx.Hash() != wantID {
			t.Errorf("entry %d: got %s, want %s", i, snapshot.Entries[i].Tx.Hash(), wantID)
		}
	}

	err = snapshot.RemoveEntry(len(snapshot.Entries))
	if err == nil {
		t.Fatal("RemoveEntry: expected an error for an out-of-range index")
	}
}

// TestAppendEntry asserts insertion grows the sequence by one with the new
// entry last.
func TestAppendEntry(t *testing.T) {
	snapshot := NewSnapshot()
	first, err := decodeEntryFromTx(testTx(1, 100), 10, 0)
	if err != nil {
		t.Fatalf("decodeEntryFromTx: unexpected error: %+v", err)
	}
	snapshot.AppendEntry(first)

	appended, err := decodeEntryFromTx(testTx(2, 200), 20, -7)
	if err != nil {
		t.Fatalf("decodeEntryFromTx: unexpected error: %+v", err)
	}
	snapshot.AppendEntry(appended)

	if len(snapshot.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(snapshot.Entries))
	}
	if snapshot.Entries[1] != appended {
		t.Fatal("appended entry is not the last element")
	}
}

// TestLoadMissingFile asserts IO failures surface as-is, not as decode
// errors.
func TestLoadMissingFile(t *testing.T) {
	snapshot, err := Load(filepath.Join("testdata", "no-such-file.dat"))
	if err == nil {
		t.Fatalf("Load: expected an error, got snapshot %s", spew.Sdump(snapshot))
	}
	if IsDecodeError(err) {
		t.Fatalf("Load: expected a plain IO error, got DecodeError %+v", err)
	}
}

// TestSave asserts Save writes exactly the serialized bytes and truncates any
// previous contents.
func TestSave(t *testing.T) {
	id := chainhash.Hash{0x44}
	serialized := buildSnapshotBytes(t, DumpVersionPlain,
		[]testEntry{{tx: testTx(5, 500), time: 50, feeDelta: 5}},
		[]testDelta{{txID: id, delta: 1}}, nil)
	snapshot, err := Deserialize(bytes.NewReader(serialized))
	if err != nil {
		t.Fatalf("Deserialize: unexpected error: %+v", err)
	}

	path := writeTempSnapshot(t, bytes.Repeat([]byte{0xff}, 4096))
	err = snapshot.Save(path)
	if err != nil {
		t.Fatalf("Save: unexpected error: %+v", err)
	}
	written, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: unexpected error: %v", err)
	}
	if !bytes.Equal(written, serialized) {
		t.Fatal("Save: file contents differ from the serialized snapshot")
	}
}

// decodeEntryFromTx round-trips a transaction through the entry codec so
// model tests work with entries built the same way Load builds them.
func decodeEntryFromTx(msgTx *wire.MsgTx, time int64, feeDelta int64) (*PoolEntry, error) {
	var buf bytes.Buffer
	err := msgTx.Serialize(&buf)
	if err != nil {
		return nil, err
	}
	var fields [16]byte
	binary.LittleEndian.PutUint64(fields[:8], uint64(time))
	binary.LittleEndian.PutUint64(fields[8:], uint64(feeDelta))
	buf.Write(fields[:])
	return decodeEntry(&buf)
}
