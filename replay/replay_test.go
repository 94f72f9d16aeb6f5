package replay

import (
	"path/filepath"
	"testing"

	"github.com/egpivo/metering-chain-sub000/core"
	"github.com/egpivo/metering-chain-sub000/storage"
)

func newSources(t *testing.T, dir string) Sources {
	t.Helper()
	return Sources{
		TxLog:     storage.NewTxLog(filepath.Join(dir, "tx.log")),
		Snapshots: storage.NewSnapshotStore(filepath.Join(dir, "state.bin")),
	}
}

func TestToTipFromGenesisAppliesEveryRecord(t *testing.T) {
	dir := t.TempDir()
	src := newSources(t, dir)

	w, err := core.NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx1, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 100})
	tx2, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 50})
	if err := src.TxLog.Append(tx1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := src.TxLog.Append(tx2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	state, nextTxID, err := ToTip(src)
	if err != nil {
		t.Fatalf("ToTip failed: %v", err)
	}
	if nextTxID != 2 {
		t.Fatalf("expected next tx id 2, got %d", nextTxID)
	}
	if state.GetAccount(w.Address()).Balance != 150 {
		t.Fatalf("expected balance 150, got %d", state.GetAccount(w.Address()).Balance)
	}
}

func TestToTipResumesFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	src := newSources(t, dir)

	w, err := core.NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx1, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 100})
	if err := src.TxLog.Append(tx1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	snapState, nextTxID, err := ToTip(src)
	if err != nil {
		t.Fatalf("ToTip failed: %v", err)
	}
	if err := src.Snapshots.Persist(snapState, nextTxID); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	tx2, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 25})
	if err := src.TxLog.Append(tx2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	state, resumedNextTxID, err := ToTip(src)
	if err != nil {
		t.Fatalf("ToTip failed: %v", err)
	}
	if resumedNextTxID != 2 {
		t.Fatalf("expected next tx id 2 after resuming from snapshot, got %d", resumedNextTxID)
	}
	if state.GetAccount(w.Address()).Balance != 125 {
		t.Fatalf("expected balance 125, got %d", state.GetAccount(w.Address()).Balance)
	}
}

func TestToTipRejectsTamperedSignature(t *testing.T) {
	dir := t.TempDir()
	src := newSources(t, dir)

	w, err := core.NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 100})
	tx.Kind.Amount = 999999 // tamper after signing
	if err := src.TxLog.Append(tx); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, _, err := ToTip(src); err == nil {
		t.Fatal("expected replay to reject a tampered signed record")
	}
}

func TestUpToMaterializesStateAtCutPoint(t *testing.T) {
	dir := t.TempDir()
	src := newSources(t, dir)

	w, err := core.NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	for i, amount := range []uint64{10, 20, 30} {
		tx, _ := w.SignTransaction(uint64(i), core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: amount})
		if err := src.TxLog.Append(tx); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	state, err := UpTo(src, 2)
	if err != nil {
		t.Fatalf("UpTo failed: %v", err)
	}
	if state.GetAccount(w.Address()).Balance != 30 {
		t.Fatalf("expected balance 30 (10+20) at cut point 2, got %d", state.GetAccount(w.Address()).Balance)
	}
}

func TestTxSliceReturnsRawRecordsFromOffset(t *testing.T) {
	dir := t.TempDir()
	src := newSources(t, dir)

	w, err := core.NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx1, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 1})
	tx2, _ := w.SignTransaction(0, core.Transaction{Kind: core.KindMint, To: w.Address(), Amount: 2})
	if err := src.TxLog.Append(tx1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := src.TxLog.Append(tx2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	txs, err := TxSlice(src, 1)
	if err != nil {
		t.Fatalf("TxSlice failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Kind.Amount != 2 {
		t.Fatalf("expected only the second record, got %+v", txs)
	}
}
