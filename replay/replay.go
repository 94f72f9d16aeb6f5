// Package replay reconstructs ledger state from the append-only
// transaction log and periodic snapshots.
package replay

import (
	"github.com/egpivo/metering-chain-sub000/core"
	"github.com/egpivo/metering-chain-sub000/storage"
)

// Sources bundles the two storage components replay reads from.
type Sources struct {
	TxLog     *storage.TxLog
	Snapshots *storage.SnapshotStore
}

// ToTip replays the transaction log to its current tip: it loads the last
// snapshot (if any) and applies every transaction recorded after it, or
// replays from genesis if no snapshot exists. Every signed record's
// signature is verified during replay so a corrupted or tampered log
// segment is never silently trusted. Replay always runs in ModeReplay —
// no wall clock, no minter/admin restriction — so it reproduces the exact
// state live processing would have produced regardless of when replay runs.
func ToTip(src Sources) (*core.State, uint64, error) {
	ctx := core.ReplayContext()

	snapshotState, nextTxID, ok, err := src.Snapshots.Load()
	if err != nil {
		return nil, 0, err
	}
	state := core.NewState()
	if ok {
		state = snapshotState
	} else {
		nextTxID = 0
	}

	txs, err := src.TxLog.LoadFrom(nextTxID)
	if err != nil {
		return nil, 0, err
	}
	for _, tx := range txs {
		if len(tx.Signature) > 0 {
			if err := core.VerifySignature(tx); err != nil {
				return nil, 0, err
			}
		}
		state, err = core.Apply(state, tx, ctx, nil, nil, nil)
		if err != nil {
			return nil, 0, err
		}
		nextTxID++
	}
	return state, nextTxID, nil
}

// TxSlice loads the raw transaction slice from fromTxID onward, used to
// build an evidence bundle for a proposed settlement.
func TxSlice(src Sources, fromTxID uint64) ([]*core.SignedTx, error) {
	return src.TxLog.LoadFrom(fromTxID)
}

// UpTo replays from genesis up to (but not including) upToTxID, returning
// the resulting state. Used when proposing a settlement — the window's
// cost totals must be computed from the exact same deterministic replay the
// chain itself would produce — and when a dispute resolver needs to
// reconstruct the state as of a settlement's recorded tx range for its
// ResolutionAudit.
func UpTo(src Sources, upToTxID uint64) (*core.State, error) {
	ctx := core.ReplayContext()

	txs, err := src.TxLog.LoadFrom(0)
	if err != nil {
		return nil, err
	}
	if uint64(len(txs)) > upToTxID {
		txs = txs[:upToTxID]
	}

	state := core.NewState()
	for _, tx := range txs {
		if len(tx.Signature) > 0 {
			if err := core.VerifySignature(tx); err != nil {
				return nil, err
			}
		}
		state, err = core.Apply(state, tx, ctx, nil, nil, nil)
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}
