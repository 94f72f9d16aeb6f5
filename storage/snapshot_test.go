package storage

import (
	"path/filepath"
	"testing"

	"github.com/egpivo/metering-chain-sub000/core"
)

func TestSnapshotStoreLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(filepath.Join(dir, "state.bin"))
	_, _, ok, err := store.Load()
	if err != nil {
		t.Fatalf("expected missing snapshot to be treated as absent: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a snapshot that was never persisted")
	}
}

func TestSnapshotStorePersistAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(filepath.Join(dir, "state.bin"))

	state := core.NewState()
	var addr core.Address
	addr[0] = 5
	state.GetOrCreateAccount(addr).Balance = 777

	if err := store.Persist(state, 42); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded, lastTxID, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after Persist")
	}
	if lastTxID != 42 {
		t.Fatalf("expected last_tx_id 42, got %d", lastTxID)
	}
	if loaded.GetAccount(addr).Balance != 777 {
		t.Fatalf("expected restored balance 777, got %d", loaded.GetAccount(addr).Balance)
	}
}

func TestSnapshotStorePersistOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(filepath.Join(dir, "state.bin"))

	if err := store.Persist(core.NewState(), 1); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	state2 := core.NewState()
	var addr core.Address
	addr[0] = 1
	state2.GetOrCreateAccount(addr).Balance = 9
	if err := store.Persist(state2, 2); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded, lastTxID, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load failed: err=%v ok=%v", err, ok)
	}
	if lastTxID != 2 {
		t.Fatalf("expected last_tx_id 2 after overwrite, got %d", lastTxID)
	}
	if loaded.GetAccount(addr).Balance != 9 {
		t.Fatalf("expected overwritten balance 9, got %d", loaded.GetAccount(addr).Balance)
	}
}
