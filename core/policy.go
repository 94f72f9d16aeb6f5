package core

// BPSMax is the basis-point denominator (10_000 = 100%).
const BPSMax = 10_000

// PolicyScopeKind discriminates a PolicyScope's precedence level.
type PolicyScopeKind uint8

const (
	ScopeGlobal PolicyScopeKind = iota
	ScopeOwner
	ScopeOwnerService
)

// PolicyScope identifies the precedence level a PolicyVersion applies at.
// Resolution walks OwnerService -> Owner -> Global, taking the first
// published version whose scope matches.
type PolicyScope struct {
	Kind      PolicyScopeKind
	Owner     Address
	ServiceID string
}

// ScopeKey returns the stable storage/resolution key for the scope.
func (s PolicyScope) ScopeKey() string {
	switch s.Kind {
	case ScopeOwner:
		return "owner:" + s.Owner.Hex()
	case ScopeOwnerService:
		return "owner_service:" + s.Owner.Hex() + ":" + s.ServiceID
	default:
		return "global"
	}
}

// ScopeChain returns the precedence chain for (owner, serviceID):
// [OwnerService, Owner, Global].
func ScopeChain(owner Address, serviceID string) []PolicyScope {
	return []PolicyScope{
		{Kind: ScopeOwnerService, Owner: owner, ServiceID: serviceID},
		{Kind: ScopeOwner, Owner: owner},
		{Kind: ScopeGlobal},
	}
}

// FeePolicy splits gross_spent between the operator and the protocol via
// integer division; the remainder (dust) is not separately tracked and is
// simply left unallocated by the split. The ledger's conservation check
// (operator_share + protocol_fee + reserve_locked == gross_spent) is exact,
// so a caller proposing a settlement from a Split result routes the dust
// into one of the three buckets itself, as recorded in DESIGN.md.
type FeePolicy struct {
	OperatorShareBps uint16
	ProtocolFeeBps   uint16
}

// Validate reports whether the split sums exactly to BPSMax.
func (f FeePolicy) Validate() bool {
	return uint32(f.OperatorShareBps)+uint32(f.ProtocolFeeBps) == BPSMax
}

// Split computes (operator_share, protocol_fee) from grossSpent.
func (f FeePolicy) Split(grossSpent uint64) (operatorShare, protocolFee uint64) {
	operatorShare = (grossSpent * uint64(f.OperatorShareBps)) / BPSMax
	protocolFee = (grossSpent * uint64(f.ProtocolFeeBps)) / BPSMax
	return
}

// ReservePolicyKind discriminates how a reserve is computed from gross spend.
type ReservePolicyKind uint8

const (
	ReserveNone ReservePolicyKind = iota
	ReserveFixed
	ReserveBps
)

// ReservePolicy determines how much of a settlement's gross spend is held
// back as a reserve.
type ReservePolicy struct {
	Kind       ReservePolicyKind
	Amount     uint64 // used when Kind == ReserveFixed
	ReserveBps uint16 // used when Kind == ReserveBps
}

// ReserveFromGross computes reserve_locked for grossSpent under p.
func (p ReservePolicy) ReserveFromGross(grossSpent uint64) uint64 {
	switch p.Kind {
	case ReserveFixed:
		return p.Amount
	case ReserveBps:
		return (grossSpent * uint64(p.ReserveBps)) / BPSMax
	default:
		return 0
	}
}

// DisputePolicy bounds how long after finalization a settlement may be
// disputed.
type DisputePolicy struct {
	DisputeWindowSecs uint64
}

// PolicyConfig bundles the three policy axes a PolicyVersion publishes.
type PolicyConfig struct {
	FeePolicy     FeePolicy
	ReservePolicy ReservePolicy
	DisputePolicy DisputePolicy
}

// Validate reports whether the config is internally consistent: the fee
// split sums to 100% and the dispute window is non-zero.
func (c PolicyConfig) Validate() bool {
	return c.FeePolicy.Validate() && c.DisputePolicy.DisputeWindowSecs > 0
}

// ReserveFromGross computes reserve_locked for grossSpent under this config.
func (c PolicyConfig) ReserveFromGross(grossSpent uint64) uint64 {
	return c.ReservePolicy.ReserveFromGross(grossSpent)
}

// PolicyVersionStatus is the publication lifecycle of a PolicyVersion.
type PolicyVersionStatus uint8

const (
	PolicyDraft PolicyVersionStatus = iota
	PolicyPublished
	PolicySuperseded
)

// PolicyVersionID identifies a policy version by (scope, version number).
type PolicyVersionID struct {
	ScopeKey string
	Version  uint64
}

// Key returns the stable storage key for the policy version.
func (id PolicyVersionID) Key() string {
	return id.ScopeKey + ":" + uintToDecimal(id.Version)
}

// PolicyVersion is one published (or draft/superseded) snapshot of policy
// configuration at a given scope, effective from a transaction id onward.
type PolicyVersion struct {
	ID                 PolicyVersionID
	Scope              PolicyScope
	EffectiveFromTxID  uint64
	PublishedBy        Address
	PublishedAt        uint64
	Config             PolicyConfig
	Status             PolicyVersionStatus
}

// IsPublished reports whether the version is in the Published status.
func (v PolicyVersion) IsPublished() bool { return v.Status == PolicyPublished }

// IsEffectiveAt reports whether the version is published and effective by
// currentTxID.
func (v PolicyVersion) IsEffectiveAt(currentTxID uint64) bool {
	return v.IsPublished() && v.EffectiveFromTxID <= currentTxID
}

// ResolvePolicy walks the scope chain for (owner, serviceID) and returns the
// highest-precedence PolicyVersion that is published and effective at
// currentTxID, or ok=false if none resolves (callers fall back to a
// ledger-wide default policy).
func ResolvePolicy(versions map[string][]PolicyVersion, owner Address, serviceID string, currentTxID uint64) (PolicyVersion, bool) {
	for _, scope := range ScopeChain(owner, serviceID) {
		candidates := versions[scope.ScopeKey()]
		var best PolicyVersion
		found := false
		for _, v := range candidates {
			if !v.IsEffectiveAt(currentTxID) {
				continue
			}
			if !found || v.EffectiveFromTxID > best.EffectiveFromTxID {
				best = v
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return PolicyVersion{}, false
}

func uintToDecimal(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
