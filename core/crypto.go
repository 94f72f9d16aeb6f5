package core

import (
	"crypto/ed25519"
	"crypto/sha256"
)

// Sha256Digest returns the raw 32-byte SHA-256 digest of data.
func Sha256Digest(data []byte) Hash {
	return sha256.Sum256(data)
}

// Sha256Hex returns the lowercase hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	h := Sha256Digest(data)
	return h.Hex()
}

// GenerateKeypair returns a fresh Ed25519 public/private keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// SignBytes signs message with priv, returning the raw 64-byte signature.
func SignBytes(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}

// VerifyBytes reports whether sig is a valid Ed25519 signature over message
// under pub. It returns false (never panics) for malformed key/signature
// lengths; ed25519.Verify itself panics on a public key of the wrong length,
// so both lengths are checked before calling it.
func VerifyBytes(pub ed25519.PublicKey, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
