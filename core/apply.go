package core

// Hooks is the capability-set apply extends through, mirroring the
// teacher's authority-node admission hooks: every field is an optional
// callback invoked at a fixed point in apply, defaulting to a no-op so a
// caller that wants nothing extra can pass a zero-value Hooks. This is
// composition, not inheritance — apply's control flow never branches on
// what kind of caller is driving it.
type Hooks struct {
	BeforeApply       func(state *State, tx *SignedTx)
	OnMintRecorded    func(state *State, to Address, amount uint64)
	OnConsumeRecorded func(state *State, owner Address, serviceID string, units, cost uint64)
	OnSettlementRecorded func(state *State, s *Settlement)
	OnClaimPaid       func(state *State, c *Claim, amount uint64)
	OnDisputeResolved func(state *State, d *Dispute)
}

func (h *Hooks) beforeApply(state *State, tx *SignedTx) {
	if h != nil && h.BeforeApply != nil {
		h.BeforeApply(state, tx)
	}
}

func (h *Hooks) onMintRecorded(state *State, to Address, amount uint64) {
	if h != nil && h.OnMintRecorded != nil {
		h.OnMintRecorded(state, to, amount)
	}
}

func (h *Hooks) onConsumeRecorded(state *State, owner Address, serviceID string, units, cost uint64) {
	if h != nil && h.OnConsumeRecorded != nil {
		h.OnConsumeRecorded(state, owner, serviceID, units, cost)
	}
}

func (h *Hooks) onSettlementRecorded(state *State, s *Settlement) {
	if h != nil && h.OnSettlementRecorded != nil {
		h.OnSettlementRecorded(state, s)
	}
}

func (h *Hooks) onClaimPaid(state *State, c *Claim, amount uint64) {
	if h != nil && h.OnClaimPaid != nil {
		h.OnClaimPaid(state, c, amount)
	}
}

func (h *Hooks) onDisputeResolved(state *State, d *Dispute) {
	if h != nil && h.OnDisputeResolved != nil {
		h.OnDisputeResolved(state, d)
	}
}

// Apply validates tx against state and, if valid, returns a new state with
// tx's effects applied. It is a pure function: the input state is never
// mutated (Clone takes a deep copy before any field write), so the same
// (state, tx) pair always produces the same (newState, error) pair — the
// property replay determinism (and crash recovery) depends on.
func Apply(state *State, tx *SignedTx, ctx ValidationContext, minters, admins AuthorizedSet, hooks *Hooks) (*State, error) {
	cost, err := Validate(state, tx, ctx, minters, admins)
	if err != nil {
		return nil, err
	}
	newState := state.Clone()
	hooks.beforeApply(newState, tx)

	switch tx.Kind.Kind {
	case KindMint:
		applyMint(newState, tx.Kind.To, tx.Kind.Amount)
		hooks.onMintRecorded(newState, tx.Kind.To, tx.Kind.Amount)
	case KindOpenMeter:
		if err := applyOpenMeter(newState, tx); err != nil {
			return nil, err
		}
	case KindConsume:
		if err := applyConsume(newState, tx, cost, ctx); err != nil {
			return nil, err
		}
		hooks.onConsumeRecorded(newState, tx.Kind.Owner, tx.Kind.ServiceID, tx.Kind.Units, cost)
	case KindCloseMeter:
		if err := applyCloseMeter(newState, tx); err != nil {
			return nil, err
		}
	case KindRevokeDelegation:
		if err := applyRevokeDelegation(newState, tx); err != nil {
			return nil, err
		}
	case KindProposeSettlement:
		s, err := applyProposeSettlement(newState, tx)
		if err != nil {
			return nil, err
		}
		hooks.onSettlementRecorded(newState, s)
	case KindFinalizeSettlement:
		if err := applyFinalizeSettlement(newState, tx, ctx); err != nil {
			return nil, err
		}
	case KindSubmitClaim:
		if err := applySubmitClaim(newState, tx); err != nil {
			return nil, err
		}
	case KindPayClaim:
		amount, err := applyPayClaim(newState, tx)
		if err != nil {
			return nil, err
		}
		hooks.onClaimPaid(newState, newState.GetClaim(tx.Kind.ClaimID), amount)
	case KindOpenDispute:
		if err := applyOpenDispute(newState, tx, ctx); err != nil {
			return nil, err
		}
	case KindResolveDispute:
		if err := applyResolveDispute(newState, tx); err != nil {
			return nil, err
		}
		hooks.onDisputeResolved(newState, newState.GetDispute(tx.Kind.SettlementID))
	default:
		return nil, NewError(CodeInvalidTransaction, "unknown transaction kind %d", tx.Kind.Kind)
	}

	return newState, nil
}

func applyMint(state *State, to Address, amount uint64) {
	account := state.GetOrCreateAccount(to)
	account.Balance += amount
}

func applyOpenMeter(state *State, tx *SignedTx) error {
	k := meterKey(tx.Kind.Owner, tx.Kind.ServiceID)
	if m, ok := state.Meters[k]; ok {
		if m.isActive() {
			return NewError(CodeStateError, "active meter already exists for %s:%s", tx.Kind.Owner.Hex(), tx.Kind.ServiceID)
		}
		m.Active = true
		m.Deposit = tx.Kind.Deposit
	} else {
		state.Meters[k] = &Meter{
			Owner:     tx.Kind.Owner,
			ServiceID: tx.Kind.ServiceID,
			Deposit:   tx.Kind.Deposit,
			Active:    true,
		}
	}

	owner, err := requireAccount(state, tx.Kind.Owner)
	if err != nil {
		return WrapError(CodeStateError, "owner account missing during apply", err)
	}
	owner.Balance -= tx.Kind.Deposit

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}

func applyConsume(state *State, tx *SignedTx, cost uint64, ctx ValidationContext) error {
	m := state.GetMeter(tx.Kind.Owner, tx.Kind.ServiceID)
	if m == nil {
		return NewError(CodeStateError, "meter not found for %s:%s", tx.Kind.Owner.Hex(), tx.Kind.ServiceID)
	}

	owner, err := requireAccount(state, tx.Kind.Owner)
	if err != nil {
		return WrapError(CodeStateError, "owner account missing during apply", err)
	}
	owner.Balance -= cost

	nonceAddr := tx.Signer
	if tx.HasNonceAccount {
		nonceAddr = tx.NonceAccount
	}
	nonceAccount, err := requireAccount(state, nonceAddr)
	if err != nil {
		return WrapError(CodeStateError, "nonce account missing during apply", err)
	}
	nonceAccount.Nonce++

	m.TotalUnits = saturatingAdd(m.TotalUnits, tx.Kind.Units)
	m.TotalSpent = saturatingAdd(m.TotalSpent, cost)

	if len(tx.DelegationProof) > 0 {
		capID := CapabilityID(tx.DelegationProof)
		usage, ok := state.Capabilities[capID]
		if !ok {
			usage = &CapabilityUsage{}
			state.Capabilities[capID] = usage
		}
		usage.ConsumedUnits += tx.Kind.Units
		usage.ConsumedCost += cost
	}
	return nil
}

func applyCloseMeter(state *State, tx *SignedTx) error {
	m := state.GetMeter(tx.Kind.Owner, tx.Kind.ServiceID)
	if m == nil {
		return NewError(CodeStateError, "meter not found for %s:%s", tx.Kind.Owner.Hex(), tx.Kind.ServiceID)
	}
	deposit := m.Deposit
	m.Active = false
	m.Deposit = 0

	owner, err := requireAccount(state, tx.Kind.Owner)
	if err != nil {
		return WrapError(CodeStateError, "owner account missing during apply", err)
	}
	owner.Balance += deposit

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}

func applyRevokeDelegation(state *State, tx *SignedTx) error {
	usage, ok := state.Capabilities[tx.Kind.CapabilityID]
	if !ok {
		usage = &CapabilityUsage{}
		state.Capabilities[tx.Kind.CapabilityID] = usage
	}
	usage.Revoked = true

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}

func applyProposeSettlement(state *State, tx *SignedTx) (*Settlement, error) {
	k := tx.Kind
	id := SettlementID{Owner: k.Owner, ServiceID: k.ServiceID, WindowID: k.WindowID}
	s := &Settlement{
		ID:            id,
		GrossSpent:    k.GrossSpent,
		OperatorShare: k.OperatorShare,
		ProtocolFee:   k.ProtocolFee,
		ReserveLocked: k.ReserveLocked,
		Status:        SettlementProposed,
		EvidenceHash:  k.EvidenceHash.Hex(),
		FromTxID:      k.FromTxID,
		ToTxID:        k.ToTxID,
	}
	state.Settlements[id.Key()] = s

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return nil, WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return s, nil
}

func applyFinalizeSettlement(state *State, tx *SignedTx, ctx ValidationContext) error {
	s := state.GetSettlement(tx.Kind.SettlementID)
	if s == nil {
		return NewError(CodeStateError, "settlement %s not found during apply", tx.Kind.SettlementID)
	}
	s.Status = SettlementFinalized
	if ctx.Mode == ModeLive && ctx.HasNow {
		s.HasFinalizedAt = true
		s.FinalizedAt = ctx.Now
	}

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}

func applySubmitClaim(state *State, tx *SignedTx) error {
	id := ClaimID{Operator: tx.Kind.Operator, SettlementKey: tx.Kind.SettlementID}
	state.Claims[id.Key()] = &Claim{ID: id, ClaimAmount: tx.Kind.PayAmount, Status: ClaimPending}

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}

func applyPayClaim(state *State, tx *SignedTx) (uint64, error) {
	c := state.GetClaim(tx.Kind.ClaimID)
	if c == nil {
		return 0, NewError(CodeStateError, "claim %s not found during apply", tx.Kind.ClaimID)
	}
	s := state.GetSettlement(c.ID.SettlementKey)
	if s == nil {
		return 0, NewError(CodeStateError, "settlement %s not found during apply", c.ID.SettlementKey)
	}
	amount := c.ClaimAmount
	s.AddPaid(amount)
	c.Status = ClaimPaid

	operator := state.GetOrCreateAccount(c.ID.Operator)
	operator.Balance += amount

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return 0, WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return amount, nil
}

func applyOpenDispute(state *State, tx *SignedTx, ctx ValidationContext) error {
	s := state.GetSettlement(tx.Kind.SettlementID)
	if s == nil {
		return NewError(CodeStateError, "settlement %s not found during apply", tx.Kind.SettlementID)
	}
	s.Status = SettlementDisputed

	d := &Dispute{
		SettlementKey:      tx.Kind.SettlementID,
		TargetSettlementID: s.ID,
		ReasonCode:         tx.Kind.ReasonCode,
		EvidenceHash:       tx.Kind.EvidenceHash.Hex(),
		Status:             DisputeOpen,
	}
	if ctx.Mode == ModeLive && ctx.HasNow {
		d.OpenedAt = ctx.Now
	}
	state.Disputes[tx.Kind.SettlementID] = d

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}

func applyResolveDispute(state *State, tx *SignedTx) error {
	d := state.GetDispute(tx.Kind.SettlementID)
	if d == nil {
		return NewError(CodeStateError, "dispute for settlement %s not found during apply", tx.Kind.SettlementID)
	}
	switch tx.Kind.Verdict {
	case VerdictUpheld:
		d.Status = DisputeUpheld
	case VerdictDismissed:
		d.Status = DisputeDismissed
		if s := state.GetSettlement(tx.Kind.SettlementID); s != nil && s.Status == SettlementDisputed {
			s.Status = SettlementFinalized
		}
	default:
		return NewError(CodeInvalidTransaction, "verdict must be Upheld or Dismissed")
	}
	d.HasResolutionAudit = true
	d.ResolutionAudit = tx.Kind.ResolutionAudit

	signer, err := requireAccount(state, tx.Signer)
	if err != nil {
		return WrapError(CodeStateError, "signer account missing during apply", err)
	}
	signer.Nonce++
	return nil
}
