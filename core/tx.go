package core

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// TxKind discriminates the transaction variants the ledger accepts. Go has
// no sum types, so the state machine switches on this the way the teacher's
// authority-role and account-kind enums do.
type TxKind uint8

const (
	KindMint TxKind = iota + 1
	KindOpenMeter
	KindConsume
	KindCloseMeter
	KindRevokeDelegation
	KindProposeSettlement
	KindFinalizeSettlement
	KindSubmitClaim
	KindPayClaim
	KindOpenDispute
	KindResolveDispute
)

func (k TxKind) String() string {
	switch k {
	case KindMint:
		return "Mint"
	case KindOpenMeter:
		return "OpenMeter"
	case KindConsume:
		return "Consume"
	case KindCloseMeter:
		return "CloseMeter"
	case KindRevokeDelegation:
		return "RevokeDelegation"
	case KindProposeSettlement:
		return "ProposeSettlement"
	case KindFinalizeSettlement:
		return "FinalizeSettlement"
	case KindSubmitClaim:
		return "SubmitClaim"
	case KindPayClaim:
		return "PayClaim"
	case KindOpenDispute:
		return "OpenDispute"
	case KindResolveDispute:
		return "ResolveDispute"
	default:
		return "Unknown"
	}
}

// PricingKind selects how a Consume transaction's cost is computed.
type PricingKind uint8

const (
	PricingUnitPrice PricingKind = iota
	PricingFixedCost
)

// Pricing is the cost model attached to a Consume transaction: either a
// per-unit price (cost = units * Value) or a fixed total cost regardless of
// units.
type Pricing struct {
	Kind  PricingKind
	Value uint64
}

// ComputeCost returns the total cost for consuming units under p, detecting
// the overflow that a per-unit multiplication can produce.
func (p Pricing) ComputeCost(units uint64) (uint64, error) {
	switch p.Kind {
	case PricingUnitPrice:
		cost := units * p.Value
		if p.Value != 0 && cost/p.Value != units {
			return 0, NewError(CodeInvalidTransaction,
				"cost computation overflow: %d units x %d price", units, p.Value)
		}
		return cost, nil
	case PricingFixedCost:
		return p.Value, nil
	default:
		return 0, NewError(CodeInvalidTransaction, "unknown pricing kind %d", p.Kind)
	}
}

// DisputeVerdict is the outcome ResolveDispute attaches to a Dispute.
type DisputeVerdict uint8

const (
	VerdictUpheld DisputeVerdict = iota + 1
	VerdictDismissed
)

// Transaction is the flat tagged body of every ledger operation. Only the
// fields relevant to Kind are populated; validate/apply switch on Kind and
// read the matching subset, the way the teacher's flat command structs work
// (e.g. core/authority_nodes.go's AuthorityNode role dispatch).
type Transaction struct {
	Kind TxKind

	// Mint
	To     Address
	Amount uint64

	// OpenMeter / Consume / CloseMeter
	Owner     Address
	ServiceID string

	// OpenMeter
	Deposit uint64

	// Consume
	Units   uint64
	Pricing Pricing

	// RevokeDelegation
	CapabilityID string

	// ProposeSettlement
	WindowID      string
	FromTxID      uint64
	ToTxID        uint64
	GrossSpent    uint64
	OperatorShare uint64
	ProtocolFee   uint64
	ReserveLocked uint64

	// FinalizeSettlement / SubmitClaim / OpenDispute / ResolveDispute
	SettlementID string

	// SubmitClaim / PayClaim
	Operator  Address
	ClaimID   string
	PayAmount uint64

	// OpenDispute
	ReasonCode   string
	EvidenceHash Hash

	// ResolveDispute
	Verdict         DisputeVerdict
	ResolutionAudit ResolutionAudit
}

// PayloadVersion selects the signable payload shape. V1 signs (signer,
// nonce, kind) only; V2 additionally binds the delegated-consume
// authentication fields (valid_at, nonce_account, delegation_proof) into the
// signed bytes so a relay cannot retarget a signature across a different
// reference time, nonce account, or capability.
type PayloadVersion uint8

const (
	PayloadVersionV1 PayloadVersion = 1
	PayloadVersionV2 PayloadVersion = 2
)

// SignedTx is a transaction plus its authentication envelope: signer,
// nonce, optional signature (nil for legacy/replay-only records), and the
// delegated-consume fields used by the Consume sub-protocol.
type SignedTx struct {
	Signer         Address
	Nonce          uint64
	Kind           Transaction
	PayloadVersion PayloadVersion

	// Signature is nil for unsigned legacy records tolerated only during
	// replay of a pre-signing-era log segment; every live-submitted tx must
	// carry one.
	Signature []byte

	// Delegated-consume fields; all empty/zero unless this is a delegated
	// Consume. DelegationProof carries the raw encoded SignedDelegationProof.
	HasValidAt      bool
	ValidAt         uint64
	DelegationProof []byte
	HasNonceAccount bool
	NonceAccount    Address
}

// EffectivePayloadVersion returns the tx's payload version, defaulting to V1
// for zero-value (legacy) records.
func (tx *SignedTx) EffectivePayloadVersion() PayloadVersion {
	if tx.PayloadVersion == 0 {
		return PayloadVersionV1
	}
	return tx.PayloadVersion
}

// rlpSignablePayloadV1 is the canonical byte sequence signed by payload
// version 1 transactions.
type rlpSignablePayloadV1 struct {
	Signer Address
	Nonce  uint64
	Kind   Transaction
}

// rlpSignablePayloadV2 additionally binds the delegated-consume
// authentication context into the signed bytes.
type rlpSignablePayloadV2 struct {
	Signer          Address
	Nonce           uint64
	Kind            Transaction
	ValidAt         uint64
	NonceAccount    Address
	DelegationProof []byte
}

// MessageToSign returns the canonical RLP-encoded bytes the signer must
// sign over. Verification must re-derive the identical bytes from the
// received tx — any mismatch is a signature failure, never a decode
// ambiguity, since RLP encoding is canonical and order-preserving.
func (tx *SignedTx) MessageToSign() ([]byte, error) {
	switch tx.EffectivePayloadVersion() {
	case PayloadVersionV2:
		return rlp.EncodeToBytes(rlpSignablePayloadV2{
			Signer:          tx.Signer,
			Nonce:           tx.Nonce,
			Kind:            tx.Kind,
			ValidAt:         tx.ValidAt,
			NonceAccount:    tx.NonceAccount,
			DelegationProof: tx.DelegationProof,
		})
	default:
		return rlp.EncodeToBytes(rlpSignablePayloadV1{
			Signer: tx.Signer,
			Nonce:  tx.Nonce,
			Kind:   tx.Kind,
		})
	}
}

// EncodeCanonical returns the canonical RLP encoding of the full signed
// transaction, used both for the on-disk log record and for hashing
// (capability IDs, evidence, tx-slice hashes).
func (tx *SignedTx) EncodeCanonical() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// DecodeSignedTx decodes a canonical RLP-encoded SignedTx record.
func DecodeSignedTx(data []byte) (*SignedTx, error) {
	var tx SignedTx
	if err := rlp.DecodeBytes(data, &tx); err != nil {
		return nil, WrapError(CodeStorageCorrupt, "failed to decode transaction record", err)
	}
	return &tx, nil
}
