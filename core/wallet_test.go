package core

import (
	"path/filepath"
	"testing"
)

func TestHDWalletDeterministicDerivation(t *testing.T) {
	w1, mnemonic, err := NewRandomHDWallet(128)
	if err != nil {
		t.Fatalf("NewRandomHDWallet failed: %v", err)
	}
	w2, err := HDWalletFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("HDWalletFromMnemonic failed: %v", err)
	}

	a1, err := w1.NewAddress(0, 0)
	if err != nil {
		t.Fatalf("NewAddress failed: %v", err)
	}
	a2, err := w2.NewAddress(0, 0)
	if err != nil {
		t.Fatalf("NewAddress failed: %v", err)
	}
	if a1 != a2 {
		t.Fatal("expected re-deriving from the same mnemonic to produce the same address")
	}

	a3, err := w1.NewAddress(0, 1)
	if err != nil {
		t.Fatalf("NewAddress failed: %v", err)
	}
	if a1 == a3 {
		t.Fatal("expected distinct indices to derive distinct addresses")
	}
}

func TestHDWalletRejectsUnsupportedEntropy(t *testing.T) {
	if _, _, err := NewRandomHDWallet(64); err == nil {
		t.Fatal("expected unsupported entropy size to be rejected")
	}
}

func TestHDWalletFromMnemonicRejectsInvalidChecksum(t *testing.T) {
	if _, err := HDWalletFromMnemonic("not a valid bip39 mnemonic at all", ""); err == nil {
		t.Fatal("expected invalid mnemonic to be rejected")
	}
}

func TestWalletSignAndVerifyTransaction(t *testing.T) {
	w, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx, err := w.SignTransaction(0, Transaction{Kind: KindMint, To: w.Address(), Amount: 1})
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}
	if err := VerifySignature(tx); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}

	tampered := *tx
	tampered.Kind.Amount = 999
	if err := VerifySignature(&tampered); err == nil {
		t.Fatal("expected tampering with signed fields to invalidate the signature")
	}
}

func TestVerifySignatureRejectsUnsignedTx(t *testing.T) {
	tx := &SignedTx{Kind: Transaction{Kind: KindMint, Amount: 1}}
	if err := VerifySignature(tx); err == nil {
		t.Fatal("expected unsigned transaction to fail verification")
	}
}

func TestVerifySignatureRejectsDelegatedConsumeWithV1Payload(t *testing.T) {
	w, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx := &SignedTx{
		Signer: w.Address(), Kind: Transaction{Kind: KindConsume},
		PayloadVersion: PayloadVersionV1, HasNonceAccount: true, NonceAccount: w.Address(),
		Signature: []byte("not-empty"),
	}
	if err := VerifySignature(tx); err == nil {
		t.Fatal("expected delegated-looking consume tx with v1 payload to be rejected")
	} else if CodeOf(err) != CodeDelegatedConsumeRequiresV2 {
		t.Fatalf("expected DELEGATED_CONSUME_REQUIRES_V2, got %s", CodeOf(err))
	}
}

func TestWalletsCreateAndPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallets.json")

	wallets, err := NewWallets(path)
	if err != nil {
		t.Fatalf("NewWallets failed: %v", err)
	}
	addr, err := wallets.CreateWallet()
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	reloaded, err := NewWallets(path)
	if err != nil {
		t.Fatalf("NewWallets reload failed: %v", err)
	}
	if reloaded.Get(addr) == nil {
		t.Fatal("expected wallet to survive reload from disk")
	}
	addrs := reloaded.Addresses()
	if len(addrs) != 1 || addrs[0] != addr {
		t.Fatalf("unexpected addresses after reload: %+v", addrs)
	}

	tx, err := reloaded.SignTransaction(addr, 0, Transaction{Kind: KindMint, To: addr, Amount: 1})
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}
	if err := VerifySignature(tx); err != nil {
		t.Fatalf("expected reloaded wallet's signature to verify: %v", err)
	}
}

func TestWalletsMissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	wallets, err := NewWallets(filepath.Join(dir, "does-not-exist.json"))
	if err != nil {
		t.Fatalf("expected missing keystore file to be treated as empty: %v", err)
	}
	if len(wallets.Addresses()) != 0 {
		t.Fatal("expected no wallets in a freshly initialized keystore")
	}
}

func TestWalletsSignTransactionUnknownAddress(t *testing.T) {
	dir := t.TempDir()
	wallets, err := NewWallets(filepath.Join(dir, "wallets.json"))
	if err != nil {
		t.Fatalf("NewWallets failed: %v", err)
	}
	var unknown Address
	unknown[0] = 1
	if _, err := wallets.SignTransaction(unknown, 0, Transaction{Kind: KindMint}); err == nil {
		t.Fatal("expected signing with an unknown address to fail")
	}
}
