package core

import (
	"encoding/hex"
	"fmt"
)

// Address is a chain address: the raw 32-byte Ed25519 public key of a
// principal. Its canonical string form is "0x" + lowercase hex.
type Address [32]byte

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// Hex returns the canonical "0x"+hex representation of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string { return a.Hex() }

// Short returns a shortened form (first 4 + last 4 hex chars) for logging.
func (a Address) Short() string {
	full := hex.EncodeToString(a[:])
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
