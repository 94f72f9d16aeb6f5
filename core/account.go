package core

import (
	"sync"
)

// Ledger is the thread-safe handle callers go through to inspect state
// without reaching into the apply pipeline themselves, wrapping a *State
// the way the teacher's AccountManager wraps a ledger's balance map.
type Ledger struct {
	mu    sync.RWMutex
	state *State
}

// NewLedger constructs a Ledger starting from state. Pass NewState() for a
// genesis ledger, or a state produced by replay for a warm start.
func NewLedger(state *State) *Ledger {
	return &Ledger{state: state}
}

// Balance returns addr's current balance.
func (l *Ledger) Balance(addr Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a := l.state.GetAccount(addr)
	if a == nil {
		return 0
	}
	return a.Balance
}

// Nonce returns addr's next expected nonce.
func (l *Ledger) Nonce(addr Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a := l.state.GetAccount(addr)
	if a == nil {
		return 0
	}
	return a.Nonce
}

// Meter returns the meter for (owner, serviceID), or nil if none exists.
func (l *Ledger) Meter(owner Address, serviceID string) *Meter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m := l.state.GetMeter(owner, serviceID)
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// Settlement returns the settlement identified by key, or nil.
func (l *Ledger) Settlement(key string) *Settlement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.state.GetSettlement(key)
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Apply validates and applies tx, swapping in the resulting state only on
// success; the caller is still responsible for appending tx to the
// transaction log before or after this call per the storage design.
func (l *Ledger) Apply(tx *SignedTx, ctx ValidationContext, minters, admins AuthorizedSet, hooks *Hooks) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	newState, err := Apply(l.state, tx, ctx, minters, admins, hooks)
	if err != nil {
		return err
	}
	l.state = newState
	return nil
}

// Snapshot returns a deep copy of the current state, suitable for handing
// to storage.SnapshotStore.Persist without holding the ledger's lock during I/O.
func (l *Ledger) Snapshot() *State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}
