package core

import (
	"crypto/ed25519"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	bip39 "github.com/tyler-smith/go-bip39"
)

// SetWalletLogger installs the logger wallet operations report through.
// Defaults to a logger discarding output, matching the rest of the package's
// injectable-logger convention.
func SetWalletLogger(l *log.Logger) { walletLogger = l }

var walletLogger = newDiscardLogger()

const hardenedOffset uint32 = 0x80000000
const masterHMACKey = "ed25519 seed"

// HDWallet derives Ed25519 keypairs from a single BIP-39 seed using
// SLIP-10-style hardened derivation (ed25519 has no unhardened children).
// Only master key material lives in memory; nothing is persisted from here
// directly — see Wallets for the on-disk keystore.
type HDWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
}

// Seed returns a copy of the wallet's master seed.
func (w *HDWallet) Seed() []byte {
	out := make([]byte, len(w.seed))
	copy(out, w.seed)
	return out
}

// NewRandomHDWallet generates entropyBits (128 or 256) of randomness and
// returns the derived wallet plus its BIP-39 recovery mnemonic.
func NewRandomHDWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", NewError(CodeInvalidTransaction, "unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", WrapError(CodeInvalidTransaction, "entropy generation failed", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", WrapError(CodeInvalidTransaction, "mnemonic generation failed", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := NewHDWalletFromSeed(seed)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// HDWalletFromMnemonic imports an existing BIP-39 recovery phrase.
func HDWalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, NewError(CodeInvalidTransaction, "invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDWalletFromSeed(seed)
}

// NewHDWalletFromSeed derives the master key/chain code directly from seed.
func NewHDWalletFromSeed(seed []byte) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, NewError(CodeInvalidTransaction, "seed too short")
	}
	i := hmacSHA512([]byte(masterHMACKey), seed)
	w := &HDWallet{seed: seed, masterKey: i[:32], masterChain: i[32:]}
	walletLogger.WithField("seed_bytes", len(seed)).Info("wallet: master key initialised")
	return w, nil
}

func derivePrivate(parentKey, parentChain []byte, index uint32) (key, chain []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, NewError(CodeInvalidTransaction, "non-hardened derivation not supported for ed25519")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)
	i := hmacSHA512(parentChain, data)
	return i[:32], i[32:], nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// PrivateKey derives the Ed25519 keypair at derivation path m/account'/index'.
func (w *HDWallet) PrivateKey(account, index uint32) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	account |= hardenedOffset
	index |= hardenedOffset
	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, account)
	if err != nil {
		return nil, nil, err
	}
	k2, _, err := derivePrivate(k1, c1, index)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(k2)
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// NewAddress derives account/index and returns its chain address.
func (w *HDWallet) NewAddress(account, index uint32) (Address, error) {
	_, pub, err := w.PrivateKey(account, index)
	if err != nil {
		return Address{}, err
	}
	return Address(pub), nil
}

// RandomMnemonicEntropy returns cryptographically random entropy of the
// given bit length (must be a multiple of 32).
func RandomMnemonicEntropy(bits int) ([]byte, error) {
	if bits%32 != 0 {
		return nil, NewError(CodeInvalidTransaction, "entropy bits must be multiple of 32")
	}
	b := make([]byte, bits/8)
	if _, err := crand.Read(b); err != nil {
		return nil, WrapError(CodeInvalidTransaction, "failed to read entropy", err)
	}
	return b, nil
}

// Wipe zeroes a byte slice in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Wallet is a single signing keypair with its derived chain address.
type Wallet struct {
	AddressVal Address
	signingKey ed25519.PrivateKey
}

// NewRandomWallet generates a fresh, non-HD Ed25519 keypair.
func NewRandomWallet() (*Wallet, error) {
	pub, priv, err := GenerateKeypair()
	if err != nil {
		return nil, WrapError(CodeInvalidTransaction, "keypair generation failed", err)
	}
	return &Wallet{AddressVal: Address(pub), signingKey: priv}, nil
}

// Address returns the wallet's chain address.
func (w *Wallet) Address() Address { return w.AddressVal }

// SignBytes signs message, returning the raw 64-byte Ed25519 signature.
func (w *Wallet) SignBytes(message []byte) []byte {
	return SignBytes(w.signingKey, message)
}

// SignTransaction builds a payload-version-1 SignedTx and attaches its
// signature.
func (w *Wallet) SignTransaction(nonce uint64, kind Transaction) (*SignedTx, error) {
	tx := &SignedTx{Signer: w.AddressVal, Nonce: nonce, Kind: kind, PayloadVersion: PayloadVersionV1}
	message, err := tx.MessageToSign()
	if err != nil {
		return nil, err
	}
	tx.Signature = w.SignBytes(message)
	return tx, nil
}

// SignDelegationProof signs claims as the owner (issuer) and returns the
// raw bytes to embed in a delegated tx's DelegationProof field.
func (w *Wallet) SignDelegationProof(claims DelegationProofMinimal) ([]byte, error) {
	message, err := DelegationClaimsToSign(claims)
	if err != nil {
		return nil, err
	}
	return BuildSignedProof(claims, w.SignBytes(message))
}

// SignTransactionV2 builds a payload-version-2 SignedTx for delegated
// Consume: the wallet signs as the delegate, nonce/nonceAccount/validAt are
// supplied by the caller (the coordinator resolving the owner's nonce).
func (w *Wallet) SignTransactionV2(nonce uint64, nonceAccount Address, validAt uint64, delegationProof []byte, kind Transaction) (*SignedTx, error) {
	tx := &SignedTx{
		Signer:          w.AddressVal,
		Nonce:           nonce,
		Kind:            kind,
		PayloadVersion:  PayloadVersionV2,
		HasNonceAccount: true,
		NonceAccount:    nonceAccount,
		HasValidAt:      true,
		ValidAt:         validAt,
		DelegationProof: delegationProof,
	}
	message, err := tx.MessageToSign()
	if err != nil {
		return nil, err
	}
	tx.Signature = w.SignBytes(message)
	return tx, nil
}

// VerifySignature checks tx's signature against its signer's public key,
// re-deriving the canonical message-to-sign bytes for the tx's effective
// payload version. Delegated-consume transactions must carry
// payload_version=2 — this gate runs before signature verification so a
// malformed legacy-shaped delegated tx never reaches the crypto check.
func VerifySignature(tx *SignedTx) error {
	isDelegatedConsume := tx.Kind.Kind == KindConsume && (len(tx.DelegationProof) > 0 || tx.HasNonceAccount)
	if isDelegatedConsume && tx.EffectivePayloadVersion() != PayloadVersionV2 {
		return NewError(CodeDelegatedConsumeRequiresV2, "delegated Consume requires payload_version=2")
	}
	if len(tx.Signature) == 0 {
		return NewError(CodeSignatureVerificationFailed, "signed transaction required")
	}
	message, err := tx.MessageToSign()
	if err != nil {
		return err
	}
	if !VerifyBytes(tx.Signer[:], message, tx.Signature) {
		return NewError(CodeSignatureVerificationFailed, "signature does not match signer")
	}
	return nil
}

// storedWallet is the on-disk JSON shape for a keystore entry.
type storedWallet struct {
	Address      string `json:"address"`
	PublicKeyHex string `json:"public_key_hex"`
	SecretKeyHex string `json:"secret_key_hex"`
}

// Wallets is an unencrypted JSON-file keystore, loaded eagerly at
// construction and rewritten in full on every mutation.
type Wallets struct {
	byAddress map[Address]*Wallet
	filePath  string
}

// NewWallets opens (or initializes) a keystore backed by filePath. A
// missing file is treated as an empty keystore, not an error.
func NewWallets(filePath string) (*Wallets, error) {
	w := &Wallets{byAddress: make(map[Address]*Wallet), filePath: filePath}
	if err := w.loadFromFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// CreateWallet generates a fresh keypair, stores it, and persists the
// keystore to disk.
func (w *Wallets) CreateWallet() (Address, error) {
	wallet, err := NewRandomWallet()
	if err != nil {
		return Address{}, err
	}
	w.byAddress[wallet.Address()] = wallet
	if err := w.saveToFile(); err != nil {
		return Address{}, err
	}
	return wallet.Address(), nil
}

// Addresses returns every address currently held in the keystore.
func (w *Wallets) Addresses() []Address {
	out := make([]Address, 0, len(w.byAddress))
	for a := range w.byAddress {
		out = append(out, a)
	}
	return out
}

// Get returns the wallet for addr, or nil if it is not in the keystore.
func (w *Wallets) Get(addr Address) *Wallet { return w.byAddress[addr] }

// SignTransaction signs on behalf of addr, which must already be in the
// keystore.
func (w *Wallets) SignTransaction(addr Address, nonce uint64, kind Transaction) (*SignedTx, error) {
	wallet, ok := w.byAddress[addr]
	if !ok {
		return nil, NewError(CodeInvalidTransaction, "wallet not found: %s", addr.Hex())
	}
	return wallet.SignTransaction(nonce, kind)
}

func (w *Wallets) loadFromFile() error {
	data, err := os.ReadFile(w.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return WrapError(CodeStorageIO, "failed to read wallets file", err)
	}
	var stored []storedWallet
	if err := json.Unmarshal(data, &stored); err != nil {
		return WrapError(CodeStorageCorrupt, "invalid wallets JSON", err)
	}
	for _, sw := range stored {
		secretBytes, err := hex.DecodeString(sw.SecretKeyHex)
		if err != nil || len(secretBytes) != ed25519.PrivateKeySize {
			// A corrupt or mismatched entry is skipped silently rather than
			// failing the whole keystore load — other wallets stay usable.
			continue
		}
		signingKey := ed25519.PrivateKey(secretBytes)
		pub := signingKey.Public().(ed25519.PublicKey)
		addr := Address(pub)
		if addr.Hex() != sw.Address {
			continue
		}
		w.byAddress[addr] = &Wallet{AddressVal: addr, signingKey: signingKey}
	}
	return nil
}

func (w *Wallets) saveToFile() error {
	dir := filepath.Dir(w.filePath)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return WrapError(CodeStorageIO, "failed to create wallets dir", err)
		}
	}
	stored := make([]storedWallet, 0, len(w.byAddress))
	for _, wal := range w.byAddress {
		stored = append(stored, storedWallet{
			Address:      wal.AddressVal.Hex(),
			PublicKeyHex: hex.EncodeToString(wal.signingKey.Public().(ed25519.PublicKey)),
			SecretKeyHex: hex.EncodeToString(wal.signingKey),
		})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return WrapError(CodeStateError, "failed to serialize wallets", err)
	}
	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return WrapError(CodeStorageIO, "failed to write wallets", err)
	}
	return nil
}
