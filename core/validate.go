package core

// ValidationMode selects whether validation may consult the wall clock.
// Live validation (handling a freshly submitted tx) uses Now/MaxAge to
// bound delegated-consume reference times; Replay validation (reconstructing
// state from the log) never touches the wall clock, so the same log always
// replays to the same state regardless of when replay runs.
type ValidationMode uint8

const (
	ModeLive ValidationMode = iota
	ModeReplay
)

// ValidationContext carries the wall-clock inputs Live validation needs.
// Replay contexts must leave HasNow/HasMaxAge false.
type ValidationContext struct {
	Mode      ValidationMode
	HasNow    bool
	Now       uint64
	HasMaxAge bool
	MaxAge    uint64
}

// LiveContext builds a Live-mode validation context.
func LiveContext(now, maxAge uint64) ValidationContext {
	return ValidationContext{Mode: ModeLive, HasNow: true, Now: now, HasMaxAge: true, MaxAge: maxAge}
}

// ReplayContext builds a Replay-mode validation context.
func ReplayContext() ValidationContext {
	return ValidationContext{Mode: ModeReplay}
}

// AuthorizedSet is a set of addresses authorized to sign a privileged
// operation (minting, or settlement/claim/dispute administration). A nil
// set means the check is skipped — used in tests and in permissive
// configurations.
type AuthorizedSet map[Address]struct{}

// Contains reports whether addr is in the set. A nil set always returns
// true (no restriction configured).
func (s AuthorizedSet) Contains(addr Address) bool {
	if s == nil {
		return true
	}
	_, ok := s[addr]
	return ok
}

// Validate checks tx against state under ctx, returning the computed cost
// for Consume transactions (0 for every other kind) or the first validation
// error encountered. It never mutates state.
func Validate(state *State, tx *SignedTx, ctx ValidationContext, minters, admins AuthorizedSet) (uint64, error) {
	switch tx.Kind.Kind {
	case KindMint:
		return 0, validateMint(tx, minters)
	case KindOpenMeter:
		return 0, validateOpenMeter(state, tx)
	case KindConsume:
		return validateConsume(state, tx, ctx)
	case KindCloseMeter:
		return 0, validateCloseMeter(state, tx)
	case KindRevokeDelegation:
		return 0, validateRevokeDelegation(state, tx)
	case KindProposeSettlement:
		return 0, validateProposeSettlement(state, tx, admins)
	case KindFinalizeSettlement:
		return 0, validateFinalizeSettlement(state, tx, admins)
	case KindSubmitClaim:
		return 0, validateSubmitClaim(state, tx)
	case KindPayClaim:
		return 0, validatePayClaim(state, tx, admins)
	case KindOpenDispute:
		return 0, validateOpenDispute(state, tx, admins)
	case KindResolveDispute:
		return 0, validateResolveDispute(state, tx, admins)
	default:
		return 0, NewError(CodeInvalidTransaction, "unknown transaction kind %d", tx.Kind.Kind)
	}
}

func requireAccount(state *State, addr Address) (*Account, error) {
	a := state.GetAccount(addr)
	if a == nil {
		return nil, NewError(CodeInvalidTransaction, "account %s does not exist", addr.Hex())
	}
	return a, nil
}

func requireNonceMatch(account *Account, nonce uint64) error {
	if account.Nonce != nonce {
		return NewError(CodeInvalidTransaction, "nonce mismatch: expected %d, got %d", account.Nonce, nonce)
	}
	return nil
}

func validateMint(tx *SignedTx, minters AuthorizedSet) error {
	if !minters.Contains(tx.Signer) {
		return NewError(CodeInvalidTransaction, "mint authorization failed: %s is not an authorized minter", tx.Signer.Hex())
	}
	if tx.Kind.Amount == 0 {
		return NewError(CodeInvalidTransaction, "mint amount must be greater than zero")
	}
	return nil
}

func validateOpenMeter(state *State, tx *SignedTx) error {
	if tx.Signer != tx.Kind.Owner {
		return NewError(CodeInvalidTransaction, "signer %s does not match owner %s", tx.Signer.Hex(), tx.Kind.Owner.Hex())
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	if tx.Kind.Deposit == 0 {
		return NewError(CodeInvalidTransaction, "deposit must be greater than zero")
	}
	if !account.hasSufficientBalance(tx.Kind.Deposit) {
		return NewError(CodeInvalidTransaction, "insufficient balance for deposit: have %d, need %d", account.Balance, tx.Kind.Deposit)
	}
	if state.HasActiveMeter(tx.Kind.Owner, tx.Kind.ServiceID) {
		return NewError(CodeInvalidTransaction, "active meter already exists for owner %s and service %s", tx.Kind.Owner.Hex(), tx.Kind.ServiceID)
	}
	return nil
}

func validateConsumeMetering(state *State, owner Address, serviceID string, units uint64, pricing Pricing) (uint64, error) {
	meter := state.GetMeter(owner, serviceID)
	if meter == nil {
		return 0, NewError(CodeInvalidTransaction, "meter does not exist for owner %s and service %s", owner.Hex(), serviceID)
	}
	if !meter.isActive() {
		return 0, NewError(CodeInvalidTransaction, "meter is not active for owner %s and service %s", owner.Hex(), serviceID)
	}
	if units == 0 {
		return 0, NewError(CodeInvalidTransaction, "units must be greater than zero")
	}
	if pricing.Value == 0 {
		return 0, NewError(CodeInvalidTransaction, "pricing value must be greater than zero")
	}
	return pricing.ComputeCost(units)
}

func validateConsumeOwner(state *State, tx *SignedTx, owner Address, cost uint64) error {
	if tx.Signer != owner {
		return NewError(CodeInvalidTransaction, "signer %s does not match owner %s", tx.Signer.Hex(), owner.Hex())
	}
	if tx.HasNonceAccount && tx.NonceAccount != owner {
		return NewError(CodeNonceAccountMissingOrInvalid, "owner-signed consume must not set a different nonce_account")
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	if !account.hasSufficientBalance(cost) {
		return NewError(CodeInvalidTransaction, "insufficient balance for consumption: have %d, need %d", account.Balance, cost)
	}
	return nil
}

// validateConsumeDelegation implements the delegated-consume sub-protocol
// (10 ordered checks): payload-version gate, presence checks, time window,
// decode+verify signature, temporal scoping, issuer/audience binding, scope
// match, capability revocation, caveat limits, nonce/balance accounting.
func validateConsumeDelegation(state *State, tx *SignedTx, ctx ValidationContext, owner Address, serviceID string, units, cost uint64) error {
	if tx.EffectivePayloadVersion() != PayloadVersionV2 {
		return NewError(CodeDelegatedConsumeRequiresV2, "delegated Consume requires payload_version=2")
	}
	if len(tx.DelegationProof) == 0 {
		return NewError(CodeDelegationProofMissing, "delegation proof missing")
	}
	if !tx.HasValidAt {
		return NewError(CodeValidAtMissing, "valid_at (reference time) missing for delegated consume")
	}
	if !tx.HasNonceAccount || tx.NonceAccount != owner {
		return NewError(CodeNonceAccountMissingOrInvalid, "nonce_account missing or invalid for delegated consume")
	}

	if ctx.Mode == ModeLive {
		if !ctx.HasNow {
			return NewError(CodeValidationContextLiveNowMissing, "live validation context requires now")
		}
		if !ctx.HasMaxAge {
			return NewError(CodeValidationContextLiveMaxAgeMissing, "live validation context requires max_age")
		}
		if tx.ValidAt > ctx.Now {
			return NewError(CodeReferenceTimeFuture, "reference time (valid_at) is in the future")
		}
		if ctx.Now-tx.ValidAt > ctx.MaxAge {
			return NewError(CodeReferenceTimeTooOld, "reference time (valid_at) too old (exceeds max_age)")
		}
	}

	signedProof, err := DecodeSignedProof(tx.DelegationProof)
	if err != nil {
		return NewError(CodeDelegationExpiredOrNotYetValid, "malformed delegation proof")
	}
	proof := signedProof.Claims

	issuerPubkey, err := PrincipalToPublicKey(proof.Issuer)
	if err != nil {
		return NewError(CodePrincipalBindingFailed, "issuer not a valid principal (0x or did:key): %v", err)
	}
	message, err := DelegationClaimsToSign(proof)
	if err != nil {
		return NewError(CodeDelegationExpiredOrNotYetValid, "failed to re-derive claims bytes")
	}
	if !VerifyBytes(issuerPubkey[:], message, signedProof.Signature) {
		return NewError(CodeDelegationExpiredOrNotYetValid, "delegation proof signature invalid")
	}

	if proof.IAT > tx.ValidAt || tx.ValidAt >= proof.EXP {
		return NewError(CodeDelegationExpiredOrNotYetValid, "delegation expired or not yet valid")
	}

	issuerAddr, err := PrincipalToChainAddress(proof.Issuer)
	if err != nil {
		return NewError(CodePrincipalBindingFailed, "invalid issuer principal: %v", err)
	}
	audienceAddr, err := PrincipalToChainAddress(proof.Audience)
	if err != nil {
		return NewError(CodePrincipalBindingFailed, "invalid audience principal: %v", err)
	}
	if owner != issuerAddr {
		return NewError(CodeDelegationIssuerOwnerMismatch, "delegation issuer does not match owner")
	}
	if tx.Signer != audienceAddr {
		return NewError(CodeDelegationAudienceSignerMismatch, "delegation audience does not match signer")
	}

	if proof.ServiceID != serviceID {
		return NewError(CodeDelegationScopeMismatch, "delegation proof service_id does not match transaction")
	}
	if proof.HasAbility && proof.Ability != AbilityConsume {
		return NewError(CodeDelegationScopeMismatch, "delegation proof ability does not match transaction")
	}

	capID := CapabilityID(tx.DelegationProof)
	if state.IsCapabilityRevoked(capID) {
		return NewError(CodeDelegationRevoked, "delegation revoked")
	}
	consumedUnits, consumedCost := state.GetCapabilityConsumption(capID)
	if proof.HasMaxUnits && saturatingAdd(consumedUnits, units) > proof.MaxUnits {
		return NewError(CodeCapabilityLimitExceeded, "capability limit exceeded")
	}
	if proof.HasMaxCost && saturatingAdd(consumedCost, cost) > proof.MaxCost {
		return NewError(CodeCapabilityLimitExceeded, "capability limit exceeded")
	}

	nonceAcc, err := requireAccount(state, tx.NonceAccount)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(nonceAcc, tx.Nonce); err != nil {
		return err
	}
	balanceAcc, err := requireAccount(state, owner)
	if err != nil {
		return err
	}
	if !balanceAcc.hasSufficientBalance(cost) {
		return NewError(CodeInvalidTransaction, "insufficient balance for consumption: have %d, need %d", balanceAcc.Balance, cost)
	}
	return nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

func validateConsume(state *State, tx *SignedTx, ctx ValidationContext) (uint64, error) {
	owner := tx.Kind.Owner
	serviceID := tx.Kind.ServiceID
	cost, err := validateConsumeMetering(state, owner, serviceID, tx.Kind.Units, tx.Kind.Pricing)
	if err != nil {
		return 0, err
	}
	isDelegated := tx.Signer != owner || len(tx.DelegationProof) > 0
	if isDelegated {
		if err := validateConsumeDelegation(state, tx, ctx, owner, serviceID, tx.Kind.Units, cost); err != nil {
			return 0, err
		}
	} else {
		if err := validateConsumeOwner(state, tx, owner, cost); err != nil {
			return 0, err
		}
	}
	return cost, nil
}

func validateCloseMeter(state *State, tx *SignedTx) error {
	owner := tx.Kind.Owner
	if tx.Signer != owner {
		return NewError(CodeInvalidTransaction, "signer %s does not match owner %s", tx.Signer.Hex(), owner.Hex())
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	meter := state.GetMeter(owner, tx.Kind.ServiceID)
	if meter == nil {
		return NewError(CodeInvalidTransaction, "meter does not exist for owner %s and service %s", owner.Hex(), tx.Kind.ServiceID)
	}
	if !meter.isActive() {
		return NewError(CodeInvalidTransaction, "meter is not active for owner %s and service %s", owner.Hex(), tx.Kind.ServiceID)
	}
	return nil
}

func validateRevokeDelegation(state *State, tx *SignedTx) error {
	owner := tx.Kind.Owner
	if tx.Signer != owner {
		return NewError(CodeInvalidTransaction, "signer %s does not match owner %s", tx.Signer.Hex(), owner.Hex())
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	return requireNonceMatch(account, tx.Nonce)
}

func requireAdmin(tx *SignedTx, admins AuthorizedSet) error {
	if !admins.Contains(tx.Signer) {
		return NewError(CodeUnauthorized, "%s is not an authorized settlement administrator", tx.Signer.Hex())
	}
	return nil
}

func validateProposeSettlement(state *State, tx *SignedTx, admins AuthorizedSet) error {
	if err := requireAdmin(tx, admins); err != nil {
		return err
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	id := SettlementID{Owner: tx.Kind.Owner, ServiceID: tx.Kind.ServiceID, WindowID: tx.Kind.WindowID}
	if state.GetSettlement(id.Key()) != nil {
		return NewError(CodeSettlementInvalidState, "settlement already proposed for %s", id.Key())
	}
	if tx.Kind.FromTxID > tx.Kind.ToTxID {
		return NewError(CodeInvalidTransaction, "from_tx_id must not exceed to_tx_id")
	}
	k := tx.Kind
	if k.OperatorShare+k.ProtocolFee+k.ReserveLocked != k.GrossSpent {
		return NewError(CodeInvalidTransaction,
			"settlement does not conserve value: operator_share(%d)+protocol_fee(%d)+reserve_locked(%d) != gross_spent(%d)",
			k.OperatorShare, k.ProtocolFee, k.ReserveLocked, k.GrossSpent)
	}
	if k.EvidenceHash.IsZero() {
		return NewError(CodeInvalidTransaction, "evidence_hash required for ProposeSettlement")
	}
	return nil
}

func validateFinalizeSettlement(state *State, tx *SignedTx, admins AuthorizedSet) error {
	if err := requireAdmin(tx, admins); err != nil {
		return err
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	s := state.GetSettlement(tx.Kind.SettlementID)
	if s == nil {
		return NewError(CodeSettlementNotFound, "settlement %s not found", tx.Kind.SettlementID)
	}
	if s.Status != SettlementProposed {
		return NewError(CodeSettlementInvalidState, "settlement %s is not Proposed", tx.Kind.SettlementID)
	}
	if s.isDisputed() {
		return NewError(CodeSettlementInvalidState, "cannot finalize: settlement %s has an open dispute", tx.Kind.SettlementID)
	}
	return nil
}

func validateSubmitClaim(state *State, tx *SignedTx) error {
	if tx.Signer != tx.Kind.Operator {
		return NewError(CodeInvalidTransaction, "signer %s does not match operator %s", tx.Signer.Hex(), tx.Kind.Operator.Hex())
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	s := state.GetSettlement(tx.Kind.SettlementID)
	if s == nil {
		return NewError(CodeSettlementNotFound, "settlement %s not found", tx.Kind.SettlementID)
	}
	if !s.isFinalized() {
		return NewError(CodeSettlementInvalidState, "settlement %s is not finalized", tx.Kind.SettlementID)
	}
	if s.isDisputed() {
		return NewError(CodeSettlementInvalidState, "settlement %s is disputed", tx.Kind.SettlementID)
	}
	claimID := ClaimID{Operator: tx.Kind.Operator, SettlementKey: tx.Kind.SettlementID}
	if state.GetClaim(claimID.Key()) != nil {
		return NewError(CodeClaimInvalidState, "claim already submitted for %s", claimID.Key())
	}
	if tx.Kind.PayAmount == 0 {
		return NewError(CodeInvalidTransaction, "claim_amount must be greater than zero")
	}
	if tx.Kind.PayAmount > s.Payable() {
		return NewError(CodeInvalidTransaction, "claim_amount %d exceeds payable %d", tx.Kind.PayAmount, s.Payable())
	}
	return nil
}

func validatePayClaim(state *State, tx *SignedTx, admins AuthorizedSet) error {
	if err := requireAdmin(tx, admins); err != nil {
		return err
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	c := state.GetClaim(tx.Kind.ClaimID)
	if c == nil {
		return NewError(CodeClaimNotFound, "claim %s not found", tx.Kind.ClaimID)
	}
	if !c.isPending() {
		return NewError(CodeClaimInvalidState, "claim %s is not pending", tx.Kind.ClaimID)
	}
	s := state.GetSettlement(c.ID.SettlementKey)
	if s == nil {
		return NewError(CodeSettlementNotFound, "settlement %s not found", c.ID.SettlementKey)
	}
	if s.isDisputed() {
		return NewError(CodeSettlementInvalidState, "settlement %s is disputed", c.ID.SettlementKey)
	}
	return nil
}

func validateOpenDispute(state *State, tx *SignedTx, admins AuthorizedSet) error {
	if err := requireAdmin(tx, admins); err != nil {
		return err
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	s := state.GetSettlement(tx.Kind.SettlementID)
	if s == nil {
		return NewError(CodeSettlementNotFound, "settlement %s not found", tx.Kind.SettlementID)
	}
	if !s.isFinalized() {
		return NewError(CodeSettlementInvalidState, "settlement %s is not finalized or claimed", tx.Kind.SettlementID)
	}
	if d := state.GetDispute(tx.Kind.SettlementID); d != nil && d.isOpen() {
		return NewError(CodeDisputeAlreadyOpen, "settlement %s already has an open dispute", tx.Kind.SettlementID)
	}
	return nil
}

func validateResolveDispute(state *State, tx *SignedTx, admins AuthorizedSet) error {
	if err := requireAdmin(tx, admins); err != nil {
		return err
	}
	account, err := requireAccount(state, tx.Signer)
	if err != nil {
		return err
	}
	if err := requireNonceMatch(account, tx.Nonce); err != nil {
		return err
	}
	d := state.GetDispute(tx.Kind.SettlementID)
	if d == nil {
		return NewError(CodeDisputeNotFound, "no dispute found for settlement %s", tx.Kind.SettlementID)
	}
	if !d.isOpen() {
		return NewError(CodeDisputeInvalidState, "dispute for settlement %s is not open", tx.Kind.SettlementID)
	}
	if tx.Kind.Verdict != VerdictUpheld && tx.Kind.Verdict != VerdictDismissed {
		return NewError(CodeInvalidTransaction, "verdict must be Upheld or Dismissed")
	}
	return nil
}
