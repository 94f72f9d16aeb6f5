package core

import (
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"
)

// multicodecEd25519Header is the two-byte multicodec varint prefix for an
// Ed25519 public key (0xed = 237), as used by did:key identifiers.
var multicodecEd25519Header = [2]byte{0xed, 0x01}

// PrincipalToPublicKey resolves a principal string to its raw 32-byte
// Ed25519 public key. Accepted forms:
//
//	0x + 64 hex chars               (direct public key)
//	did:key:z<base58btc(0xed,0x01,pubkey)>   (multibase/multicodec Ed25519)
//
// Any other form, or a did:key with the wrong multicodec header or length,
// is rejected — there is no fallback principal scheme.
func PrincipalToPublicKey(principal string) ([32]byte, error) {
	var out [32]byte
	s := strings.TrimSpace(principal)

	if mb, ok := strings.CutPrefix(s, "did:key:"); ok {
		mb = strings.TrimSpace(mb)
		body, ok := strings.CutPrefix(mb, "z")
		if !ok {
			return out, NewError(CodePrincipalBindingFailed,
				"did:key multibase value must start with 'z' (base58-btc)")
		}
		decoded, err := base58.Decode(body)
		if err != nil {
			return out, WrapError(CodePrincipalBindingFailed,
				"did:key base58 decode failed", err)
		}
		if len(decoded) != 34 || decoded[0] != multicodecEd25519Header[0] || decoded[1] != multicodecEd25519Header[1] {
			return out, NewError(CodePrincipalBindingFailed,
				"did:key only supports Ed25519 (multicodec 0xed); wrong header or length")
		}
		copy(out[:], decoded[2:34])
		return out, nil
	}

	hexPart, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return out, NewError(CodePrincipalBindingFailed,
			"principal must be 0x+hex (32-byte) or did:key (Ed25519)")
	}
	decoded, err := hex.DecodeString(strings.ToLower(hexPart))
	if err != nil {
		return out, WrapError(CodePrincipalBindingFailed, "invalid hex", err)
	}
	if len(decoded) != 32 {
		return out, NewError(CodePrincipalBindingFailed,
			"expected 32-byte pubkey (64 hex chars)")
	}
	copy(out[:], decoded)
	return out, nil
}

// PrincipalToChainAddress resolves a principal to its canonical chain
// address ("0x"+hex of the 32-byte Ed25519 public key).
func PrincipalToChainAddress(principal string) (Address, error) {
	pub, err := PrincipalToPublicKey(principal)
	if err != nil {
		return Address{}, err
	}
	return Address(pub), nil
}
