package core

// ReplaySummary records the tx range a replay covered, attached to a
// dispute's ResolutionAudit as proof of what was replayed to produce the
// verdict's replay_hash.
type ReplaySummary struct {
	FromTxID uint64
	TxCount  uint64
}

// ResolutionAudit is the replay-justified evidence attached to a Dispute
// when it is resolved: the protocol version the replay ran under, the
// resulting state hash, and the tx range replayed.
type ResolutionAudit struct {
	ReplayProtocolVersion uint16
	ReplayHash            string
	ReplaySummary         ReplaySummary
}

// EvidenceHash returns the lowercase hex SHA-256 digest of data. Used for
// evidence bundle hashing and capability IDs.
func EvidenceHash(data []byte) string {
	return Sha256Hex(data)
}

// TxSliceHash hashes a contiguous slice of signed transactions by
// concatenating each one's canonical RLP encoding and hashing the result.
// Any record that fails to encode is skipped, matching the original
// best-effort evidence hashing (a malformed in-memory record should never
// panic evidence construction).
func TxSliceHash(txs []*SignedTx) string {
	var buf []byte
	for _, tx := range txs {
		enc, err := tx.EncodeCanonical()
		if err != nil {
			continue
		}
		buf = append(buf, enc...)
	}
	return EvidenceHash(buf)
}
