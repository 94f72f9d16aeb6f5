package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/egpivo/metering-chain-sub000/core"
)

// SnapshotStore persists and loads the periodic state snapshot. The on-disk
// layout is [canonical state bytes][last_tx_id: u64 little-endian]; writes
// go through a temp file that is fsynced, renamed over the real path, and
// followed by a parent-directory fsync so a crash can never observe a
// half-written snapshot.
type SnapshotStore struct {
	path    string
	tmpPath string
}

// NewSnapshotStore returns a SnapshotStore backed by path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path, tmpPath: path + ".tmp"}
}

// Load returns the persisted (state, lastTxID) pair, or ok=false if no
// snapshot has ever been written.
func (s *SnapshotStore) Load() (state *core.State, lastTxID uint64, ok bool, err error) {
	data, readErr := os.ReadFile(s.path)
	if os.IsNotExist(readErr) {
		return nil, 0, false, nil
	}
	if readErr != nil {
		return nil, 0, false, core.WrapError(core.CodeStorageIO, "failed to read state file", readErr)
	}
	if len(data) < 8 {
		return nil, 0, false, core.NewError(core.CodeStorageCorrupt, "state file too short")
	}

	stateBytes := data[:len(data)-8]
	lastTxID = binary.LittleEndian.Uint64(data[len(data)-8:])

	st, err := core.UnmarshalCanonicalState(stateBytes)
	if err != nil {
		return nil, 0, false, err
	}
	return st, lastTxID, true, nil
}

// Persist atomically writes state and lastTxID as the new snapshot.
func (s *SnapshotStore) Persist(state *core.State, lastTxID uint64) error {
	if err := ensureDir(s.path); err != nil {
		return err
	}
	stateBytes, err := state.MarshalCanonical()
	if err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to encode state", err)
	}

	f, err := os.Create(s.tmpPath)
	if err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to create temp state file", err)
	}

	if _, err := f.Write(stateBytes); err != nil {
		f.Close()
		return core.WrapError(core.CodeStorageIO, "failed to write state", err)
	}
	var lastTxIDBuf [8]byte
	binary.LittleEndian.PutUint64(lastTxIDBuf[:], lastTxID)
	if _, err := f.Write(lastTxIDBuf[:]); err != nil {
		f.Close()
		return core.WrapError(core.CodeStorageIO, "failed to write last_tx_id", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return core.WrapError(core.CodeStorageIO, "failed to fsync temp state file", err)
	}
	if err := f.Close(); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to close temp state file", err)
	}

	if err := os.Rename(s.tmpPath, s.path); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to rename temp state file", err)
	}

	if err := fsyncParentDir(s.path); err != nil {
		return err
	}

	logger.WithField("last_tx_id", lastTxID).Info("storage: persisted state snapshot")
	return nil
}

func fsyncParentDir(path string) error {
	dir := filepath.Dir(path)
	f, err := os.Open(dir)
	if err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to open parent directory", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return core.WrapError(core.CodeStorageIO, "failed to fsync parent directory", err)
	}
	return nil
}
