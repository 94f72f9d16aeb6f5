package core

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// AbilityConsume is the canonical ability name a delegation proof scopes
// itself to when it is meant to authorize Consume only.
const AbilityConsume = "consume"

// DelegationProofMinimal is the claim set an owner signs to delegate
// Consume authority to another signer. Scope is (issuer, service_id,
// ability); caveats (MaxUnits, MaxCost) bound the capability's lifetime
// consumption.
type DelegationProofMinimal struct {
	IAT         uint64
	EXP         uint64
	Issuer      string
	Audience    string
	ServiceID   string
	HasAbility  bool
	Ability     string
	HasMaxUnits bool
	MaxUnits    uint64
	HasMaxCost  bool
	MaxCost     uint64
}

// SignedDelegationProof is the wire form carried in a tx's DelegationProof
// field: claims plus the issuer's Ed25519 signature over the canonical
// encoding of claims.
type SignedDelegationProof struct {
	Claims    DelegationProofMinimal
	Signature []byte
}

// DelegationClaimsToSign returns the canonical bytes the issuer (owner)
// signs to authorize a DelegationProofMinimal.
func DelegationClaimsToSign(claims DelegationProofMinimal) ([]byte, error) {
	return rlp.EncodeToBytes(claims)
}

// BuildSignedProof encodes claims and signature into the raw bytes a tx's
// DelegationProof field carries.
func BuildSignedProof(claims DelegationProofMinimal, signature []byte) ([]byte, error) {
	return rlp.EncodeToBytes(SignedDelegationProof{Claims: claims, Signature: signature})
}

// DecodeSignedProof decodes the raw DelegationProof bytes carried on a tx.
func DecodeSignedProof(proofBytes []byte) (*SignedDelegationProof, error) {
	var p SignedDelegationProof
	if err := rlp.DecodeBytes(proofBytes, &p); err != nil {
		return nil, WrapError(CodeDelegationExpiredOrNotYetValid, "failed to decode delegation proof", err)
	}
	return &p, nil
}

// CapabilityID is the deterministic identifier for a delegated capability:
// sha256 of the exact DelegationProof bytes carried on the transaction,
// lowercase hex. Two transactions referencing the same raw proof bytes
// always resolve to the same capability, which is what caveat accounting
// and revocation key off of.
func CapabilityID(proofBytes []byte) string {
	return Sha256Hex(proofBytes)
}
