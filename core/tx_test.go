package core

import "testing"

func TestPricingComputeCostUnitPrice(t *testing.T) {
	p := Pricing{Kind: PricingUnitPrice, Value: 3}
	cost, err := p.ComputeCost(10)
	if err != nil {
		t.Fatalf("ComputeCost failed: %v", err)
	}
	if cost != 30 {
		t.Fatalf("expected cost 30, got %d", cost)
	}
}

func TestPricingComputeCostFixed(t *testing.T) {
	p := Pricing{Kind: PricingFixedCost, Value: 500}
	cost, err := p.ComputeCost(999999)
	if err != nil {
		t.Fatalf("ComputeCost failed: %v", err)
	}
	if cost != 500 {
		t.Fatalf("expected fixed cost 500, got %d", cost)
	}
}

func TestPricingComputeCostOverflow(t *testing.T) {
	p := Pricing{Kind: PricingUnitPrice, Value: 1 << 40}
	_, err := p.ComputeCost(1 << 40)
	if err == nil {
		t.Fatal("expected overflow to be detected")
	}
	if CodeOf(err) != CodeInvalidTransaction {
		t.Fatalf("expected INVALID_TRANSACTION, got %s", CodeOf(err))
	}
}

func TestPricingComputeCostUnknownKind(t *testing.T) {
	p := Pricing{Kind: PricingKind(99)}
	if _, err := p.ComputeCost(1); err == nil {
		t.Fatal("expected unknown pricing kind to error")
	}
}

func TestTxKindString(t *testing.T) {
	if KindMint.String() != "Mint" {
		t.Fatalf("unexpected String(): %s", KindMint.String())
	}
	if TxKind(250).String() != "Unknown" {
		t.Fatal("expected unrecognized kind to stringify as Unknown")
	}
}

func TestSignTransactionMessageStableAcrossEncoding(t *testing.T) {
	w, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tx, err := w.SignTransaction(5, Transaction{Kind: KindMint, To: w.Address(), Amount: 42})
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}
	if tx.EffectivePayloadVersion() != PayloadVersionV1 {
		t.Fatalf("expected V1 payload, got %d", tx.EffectivePayloadVersion())
	}

	encoded, err := tx.EncodeCanonical()
	if err != nil {
		t.Fatalf("EncodeCanonical failed: %v", err)
	}
	decoded, err := DecodeSignedTx(encoded)
	if err != nil {
		t.Fatalf("DecodeSignedTx failed: %v", err)
	}
	if decoded.Signer != tx.Signer || decoded.Nonce != tx.Nonce || decoded.Kind.Amount != tx.Kind.Amount {
		t.Fatalf("decoded tx mismatch: %+v vs %+v", decoded, tx)
	}
	if err := VerifySignature(decoded); err != nil {
		t.Fatalf("decoded tx should still verify: %v", err)
	}
}

func TestSignTransactionV2BindsDelegationFields(t *testing.T) {
	w, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	owner, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	proof := DelegationProofMinimal{IAT: 1, EXP: 1000, Issuer: owner.Address().Hex(), Audience: w.Address().Hex(), ServiceID: "svc"}
	proofBytes, err := owner.SignDelegationProof(proof)
	if err != nil {
		t.Fatalf("SignDelegationProof failed: %v", err)
	}

	tx, err := w.SignTransactionV2(0, owner.Address(), 50, proofBytes, Transaction{
		Kind: KindConsume, Owner: owner.Address(), ServiceID: "svc", Units: 10,
		Pricing: Pricing{Kind: PricingUnitPrice, Value: 2},
	})
	if err != nil {
		t.Fatalf("SignTransactionV2 failed: %v", err)
	}
	if tx.EffectivePayloadVersion() != PayloadVersionV2 {
		t.Fatal("expected payload version 2")
	}
	if err := VerifySignature(tx); err != nil {
		t.Fatalf("expected valid v2 signature, got: %v", err)
	}

	// Retargeting the nonce account after signing must invalidate the signature,
	// proving v2's signed bytes actually bind NonceAccount.
	tampered := *tx
	other, err := NewRandomWallet()
	if err != nil {
		t.Fatalf("NewRandomWallet failed: %v", err)
	}
	tampered.NonceAccount = other.Address()
	if err := VerifySignature(&tampered); err == nil {
		t.Fatal("expected signature to fail after retargeting nonce_account")
	}
}

func TestDecodeSignedTxRejectsGarbage(t *testing.T) {
	if _, err := DecodeSignedTx([]byte("not rlp")); err == nil {
		t.Fatal("expected malformed tx bytes to fail decoding")
	}
}
