package core

import "testing"

func TestLedgerBalanceAndNonceDefaultZero(t *testing.T) {
	l := NewLedger(NewState())
	var addr Address
	addr[0] = 1
	if l.Balance(addr) != 0 || l.Nonce(addr) != 0 {
		t.Fatal("expected zero balance/nonce for unknown account")
	}
}

func TestLedgerApplyMintUpdatesBalance(t *testing.T) {
	l := NewLedger(NewState())
	minter, _ := NewRandomWallet()
	tx, _ := minter.SignTransaction(0, Transaction{Kind: KindMint, To: minter.Address(), Amount: 250})
	if err := l.Apply(tx, ReplayContext(), nil, nil, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if l.Balance(minter.Address()) != 250 {
		t.Fatalf("expected balance 250, got %d", l.Balance(minter.Address()))
	}
}

func TestLedgerApplyRejectsInvalidTxWithoutMutatingState(t *testing.T) {
	l := NewLedger(NewState())
	minter, _ := NewRandomWallet()
	tx, _ := minter.SignTransaction(0, Transaction{Kind: KindMint, To: minter.Address(), Amount: 0})
	if err := l.Apply(tx, ReplayContext(), nil, nil, nil); err == nil {
		t.Fatal("expected zero-amount mint to be rejected")
	}
	if l.Balance(minter.Address()) != 0 {
		t.Fatal("rejected tx must not change balance")
	}
}

func TestLedgerSnapshotIsIndependentCopy(t *testing.T) {
	l := NewLedger(NewState())
	minter, _ := NewRandomWallet()
	tx, _ := minter.SignTransaction(0, Transaction{Kind: KindMint, To: minter.Address(), Amount: 10})
	if err := l.Apply(tx, ReplayContext(), nil, nil, nil); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	snap := l.Snapshot()
	snap.GetAccount(minter.Address()).Balance = 99999

	if l.Balance(minter.Address()) != 10 {
		t.Fatalf("mutating the snapshot must not affect the ledger: got %d", l.Balance(minter.Address()))
	}
}

func TestLedgerMeterAndSettlementReturnCopies(t *testing.T) {
	state := NewState()
	var owner Address
	owner[0] = 1
	state.Meters[meterKey(owner, "svc")] = &Meter{Owner: owner, ServiceID: "svc", Deposit: 10, Active: true}
	l := NewLedger(state)

	m := l.Meter(owner, "svc")
	if m == nil {
		t.Fatal("expected meter to be found")
	}
	m.Deposit = 999
	if l.Meter(owner, "svc").Deposit != 10 {
		t.Fatal("Meter() must return a copy, not a live reference")
	}

	if l.Settlement("nonexistent") != nil {
		t.Fatal("expected nil for unknown settlement")
	}
}
