package core

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// Account is a balance/nonce pair keyed by chain address. Nonce is the next
// expected nonce for a transaction signed (or, for delegated consume,
// nonce-accounted) by this address.
type Account struct {
	Address Address
	Balance uint64
	Nonce   uint64
}

func (a *Account) hasSufficientBalance(amount uint64) bool { return a.Balance >= amount }

// MeterKey identifies a meter by (owner, service).
type MeterKey struct {
	Owner     Address
	ServiceID string
}

func meterKey(owner Address, serviceID string) MeterKey {
	return MeterKey{Owner: owner, ServiceID: serviceID}
}

// Meter tracks a service's locked deposit, open/closed status, and
// lifetime usage. TotalUnits/TotalSpent are monotonic counters that
// accumulate across Consume operations and survive a close/reopen cycle —
// only Deposit resets on reopen.
type Meter struct {
	Owner      Address
	ServiceID  string
	Deposit    uint64
	Active     bool
	TotalUnits uint64
	TotalSpent uint64
}

func (m *Meter) isActive() bool { return m != nil && m.Active }

// CapabilityUsage tracks cumulative consumption and revocation for a
// delegated-consume capability, keyed by its CapabilityID.
type CapabilityUsage struct {
	ConsumedUnits uint64
	ConsumedCost  uint64
	Revoked       bool
}

// SettlementStatus is the lifecycle state of a Settlement.
type SettlementStatus uint8

const (
	SettlementProposed SettlementStatus = iota
	SettlementFinalized
	SettlementClaimed
	SettlementDisputed
	SettlementResolved
)

// SettlementID identifies a settlement window by (owner, service, window).
type SettlementID struct {
	Owner     Address
	ServiceID string
	WindowID  string
}

// Key returns the stable storage/lookup key for the settlement.
func (id SettlementID) Key() string {
	return id.Owner.Hex() + ":" + id.ServiceID + ":" + id.WindowID
}

// Settlement is the economic-finality aggregate produced by
// ProposeSettlement/FinalizeSettlement and consumed by SubmitClaim/PayClaim.
// Conservation law: OperatorShare + ProtocolFee + ReserveLocked == GrossSpent.
type Settlement struct {
	ID             SettlementID
	GrossSpent     uint64
	OperatorShare  uint64
	ProtocolFee    uint64
	ReserveLocked  uint64
	Status         SettlementStatus
	EvidenceHash   string
	FromTxID       uint64
	ToTxID         uint64
	TotalPaid      uint64

	HasPolicyScopeKey     bool
	PolicyScopeKey        string
	HasPolicyVersion      bool
	PolicyVersion         uint64
	HasDisputeWindowSecs  bool
	DisputeWindowSecs     uint64
	HasFinalizedAt        bool
	FinalizedAt           uint64
}

// Payable returns the operator's outstanding payable balance.
func (s *Settlement) Payable() uint64 {
	if s.TotalPaid >= s.OperatorShare {
		return 0
	}
	return s.OperatorShare - s.TotalPaid
}

// AddPaid records a claim payout, capping at the remaining payable amount
// and transitioning to Claimed once fully paid.
func (s *Settlement) AddPaid(amount uint64) {
	remaining := s.Payable()
	toAdd := amount
	if toAdd > remaining {
		toAdd = remaining
	}
	s.TotalPaid += toAdd
	if s.TotalPaid >= s.OperatorShare {
		s.Status = SettlementClaimed
	}
}

func (s *Settlement) isFinalized() bool {
	return s.Status == SettlementFinalized || s.Status == SettlementClaimed
}

func (s *Settlement) isDisputed() bool { return s.Status == SettlementDisputed }

// ClaimStatus is the lifecycle state of a Claim.
type ClaimStatus uint8

const (
	ClaimPending ClaimStatus = iota
	ClaimPaid
	ClaimRejected
)

// ClaimID identifies a claim by (operator, settlement).
type ClaimID struct {
	Operator      Address
	SettlementKey string
}

// Key returns the stable storage/lookup key for the claim.
func (id ClaimID) Key() string { return id.Operator.Hex() + ":" + id.SettlementKey }

// Claim is an operator's request to be paid out of a finalized settlement's
// operator_share.
type Claim struct {
	ID          ClaimID
	ClaimAmount uint64
	Status      ClaimStatus
}

func (c *Claim) isPending() bool { return c.Status == ClaimPending }

// DisputeStatus is the lifecycle state of a Dispute.
type DisputeStatus uint8

const (
	DisputeOpen DisputeStatus = iota
	DisputeUpheld
	DisputeDismissed
)

// Dispute is a challenge against a settlement; at most one open dispute may
// exist per settlement at a time.
type Dispute struct {
	SettlementKey      string
	TargetSettlementID SettlementID
	ReasonCode         string
	EvidenceHash       string
	OpenedAt           uint64
	Status             DisputeStatus

	HasResolutionAudit bool
	ResolutionAudit    ResolutionAudit
}

func (d *Dispute) isOpen() bool { return d.Status == DisputeOpen }

// State is the full deterministic ledger aggregate. Every field is a map
// keyed for O(1) lookup during validate/apply; canonical (sorted)
// serialization is used only at the snapshot boundary (MarshalCanonical),
// so iteration order inside the maps never affects persisted bytes.
type State struct {
	Accounts        map[Address]*Account
	Meters          map[MeterKey]*Meter
	Capabilities    map[string]*CapabilityUsage
	Settlements     map[string]*Settlement
	Claims          map[string]*Claim
	Disputes        map[string]*Dispute
	PolicyVersions  map[string][]PolicyVersion
}

// NewState returns an empty genesis state.
func NewState() *State {
	return &State{
		Accounts:       make(map[Address]*Account),
		Meters:         make(map[MeterKey]*Meter),
		Capabilities:   make(map[string]*CapabilityUsage),
		Settlements:    make(map[string]*Settlement),
		Claims:         make(map[string]*Claim),
		Disputes:       make(map[string]*Dispute),
		PolicyVersions: make(map[string][]PolicyVersion),
	}
}

// GetAccount returns the account at addr, or nil if it does not exist.
func (s *State) GetAccount(addr Address) *Account { return s.Accounts[addr] }

// GetOrCreateAccount returns the account at addr, creating a zero-balance
// account if one does not already exist.
func (s *State) GetOrCreateAccount(addr Address) *Account {
	a, ok := s.Accounts[addr]
	if !ok {
		a = &Account{Address: addr}
		s.Accounts[addr] = a
	}
	return a
}

// GetMeter returns the meter for (owner, serviceID), or nil.
func (s *State) GetMeter(owner Address, serviceID string) *Meter {
	return s.Meters[meterKey(owner, serviceID)]
}

// HasActiveMeter reports whether an active meter exists for (owner, serviceID).
func (s *State) HasActiveMeter(owner Address, serviceID string) bool {
	m := s.GetMeter(owner, serviceID)
	return m.isActive()
}

// IsCapabilityRevoked reports whether capID has been revoked.
func (s *State) IsCapabilityRevoked(capID string) bool {
	u, ok := s.Capabilities[capID]
	return ok && u.Revoked
}

// GetCapabilityConsumption returns the cumulative (units, cost) consumed
// under capID so far.
func (s *State) GetCapabilityConsumption(capID string) (units, cost uint64) {
	u, ok := s.Capabilities[capID]
	if !ok {
		return 0, 0
	}
	return u.ConsumedUnits, u.ConsumedCost
}

// GetSettlement returns the settlement identified by key, or nil.
func (s *State) GetSettlement(key string) *Settlement { return s.Settlements[key] }

// GetClaim returns the claim identified by key, or nil.
func (s *State) GetClaim(key string) *Claim { return s.Claims[key] }

// GetDispute returns the dispute targeting the settlement identified by
// settlementKey, or nil.
func (s *State) GetDispute(settlementKey string) *Dispute { return s.Disputes[settlementKey] }

// Clone returns a deep copy of the state so validate/apply can compute a
// new state without mutating the caller's copy in place.
func (s *State) Clone() *State {
	out := NewState()
	for k, v := range s.Accounts {
		cp := *v
		out.Accounts[k] = &cp
	}
	for k, v := range s.Meters {
		cp := *v
		out.Meters[k] = &cp
	}
	for k, v := range s.Capabilities {
		cp := *v
		out.Capabilities[k] = &cp
	}
	for k, v := range s.Settlements {
		cp := *v
		out.Settlements[k] = &cp
	}
	for k, v := range s.Claims {
		cp := *v
		out.Claims[k] = &cp
	}
	for k, v := range s.Disputes {
		cp := *v
		out.Disputes[k] = &cp
	}
	for k, v := range s.PolicyVersions {
		cp := make([]PolicyVersion, len(v))
		copy(cp, v)
		out.PolicyVersions[k] = cp
	}
	return out
}

// --- canonical snapshot encoding ---
//
// rlp cannot encode Go maps deterministically (iteration order is
// randomized), so the snapshot form sorts every collection by its key
// before encoding. Two states with the same logical content always produce
// byte-identical snapshots.

type rlpAccountEntry struct {
	Key   Address
	Value Account
}

type rlpMeterEntry struct {
	OwnerKey     Address
	ServiceIDKey string
	Value        Meter
}

type rlpCapabilityEntry struct {
	Key   string
	Value CapabilityUsage
}

type rlpSettlementEntry struct {
	Key   string
	Value Settlement
}

type rlpClaimEntry struct {
	Key   string
	Value Claim
}

type rlpDisputeEntry struct {
	Key   string
	Value Dispute
}

type rlpPolicyVersionEntry struct {
	ScopeKey string
	Versions []PolicyVersion
}

type rlpState struct {
	Accounts       []rlpAccountEntry
	Meters         []rlpMeterEntry
	Capabilities   []rlpCapabilityEntry
	Settlements    []rlpSettlementEntry
	Claims         []rlpClaimEntry
	Disputes       []rlpDisputeEntry
	PolicyVersions []rlpPolicyVersionEntry
}

// MarshalCanonical returns the canonical RLP-encoded snapshot bytes for the
// state: sorted-by-key so encoding is independent of Go map iteration order.
func (s *State) MarshalCanonical() ([]byte, error) {
	r := rlpState{}

	accountKeys := make([]Address, 0, len(s.Accounts))
	for k := range s.Accounts {
		accountKeys = append(accountKeys, k)
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Hex() < accountKeys[j].Hex() })
	for _, k := range accountKeys {
		r.Accounts = append(r.Accounts, rlpAccountEntry{Key: k, Value: *s.Accounts[k]})
	}

	meterKeys := make([]MeterKey, 0, len(s.Meters))
	for k := range s.Meters {
		meterKeys = append(meterKeys, k)
	}
	sort.Slice(meterKeys, func(i, j int) bool {
		if meterKeys[i].Owner.Hex() != meterKeys[j].Owner.Hex() {
			return meterKeys[i].Owner.Hex() < meterKeys[j].Owner.Hex()
		}
		return meterKeys[i].ServiceID < meterKeys[j].ServiceID
	})
	for _, k := range meterKeys {
		r.Meters = append(r.Meters, rlpMeterEntry{OwnerKey: k.Owner, ServiceIDKey: k.ServiceID, Value: *s.Meters[k]})
	}

	r.Capabilities = sortedEntries(s.Capabilities, func(k string, v *CapabilityUsage) rlpCapabilityEntry {
		return rlpCapabilityEntry{Key: k, Value: *v}
	})
	r.Settlements = sortedEntries(s.Settlements, func(k string, v *Settlement) rlpSettlementEntry {
		return rlpSettlementEntry{Key: k, Value: *v}
	})
	r.Claims = sortedEntries(s.Claims, func(k string, v *Claim) rlpClaimEntry {
		return rlpClaimEntry{Key: k, Value: *v}
	})
	r.Disputes = sortedEntries(s.Disputes, func(k string, v *Dispute) rlpDisputeEntry {
		return rlpDisputeEntry{Key: k, Value: *v}
	})

	policyKeys := make([]string, 0, len(s.PolicyVersions))
	for k := range s.PolicyVersions {
		policyKeys = append(policyKeys, k)
	}
	sort.Strings(policyKeys)
	for _, k := range policyKeys {
		r.PolicyVersions = append(r.PolicyVersions, rlpPolicyVersionEntry{ScopeKey: k, Versions: s.PolicyVersions[k]})
	}

	return rlp.EncodeToBytes(r)
}

func sortedEntries[V any, E any](m map[string]*V, build func(string, *V) E) []E {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]E, 0, len(keys))
	for _, k := range keys {
		out = append(out, build(k, m[k]))
	}
	return out
}

// UnmarshalCanonicalState decodes a snapshot produced by MarshalCanonical.
func UnmarshalCanonicalState(data []byte) (*State, error) {
	var r rlpState
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return nil, WrapError(CodeStorageCorrupt, "failed to decode state snapshot", err)
	}
	s := NewState()
	for _, e := range r.Accounts {
		v := e.Value
		s.Accounts[e.Key] = &v
	}
	for _, e := range r.Meters {
		v := e.Value
		s.Meters[meterKey(e.OwnerKey, e.ServiceIDKey)] = &v
	}
	for _, e := range r.Capabilities {
		v := e.Value
		s.Capabilities[e.Key] = &v
	}
	for _, e := range r.Settlements {
		v := e.Value
		s.Settlements[e.Key] = &v
	}
	for _, e := range r.Claims {
		v := e.Value
		s.Claims[e.Key] = &v
	}
	for _, e := range r.Disputes {
		v := e.Value
		s.Disputes[e.Key] = &v
	}
	for _, e := range r.PolicyVersions {
		s.PolicyVersions[e.ScopeKey] = e.Versions
	}
	return s, nil
}

// StateHash returns the SHA-256 hash (lowercase hex) of the state's
// canonical snapshot encoding, used as a dispute's replay_hash.
func (s *State) StateHash() (string, error) {
	b, err := s.MarshalCanonical()
	if err != nil {
		return "", err
	}
	return EvidenceHash(b), nil
}
