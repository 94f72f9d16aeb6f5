package core

import "testing"

func TestGetOrCreateAccountCreatesZeroBalance(t *testing.T) {
	s := NewState()
	var addr Address
	addr[0] = 1
	a := s.GetOrCreateAccount(addr)
	if a.Balance != 0 || a.Nonce != 0 {
		t.Fatalf("expected zero-value account, got %+v", a)
	}
	if s.GetOrCreateAccount(addr) != a {
		t.Fatal("GetOrCreateAccount should return the same account on repeat calls")
	}
}

func TestCloneIsDeepCopy(t *testing.T) {
	s := NewState()
	var addr Address
	addr[0] = 9
	acc := s.GetOrCreateAccount(addr)
	acc.Balance = 100

	clone := s.Clone()
	clone.GetAccount(addr).Balance = 999

	if s.GetAccount(addr).Balance != 100 {
		t.Fatalf("mutating the clone must not affect the original: got %d", s.GetAccount(addr).Balance)
	}
}

func TestMeterActiveTracking(t *testing.T) {
	s := NewState()
	var owner Address
	owner[0] = 1
	if s.HasActiveMeter(owner, "svc") {
		t.Fatal("expected no active meter in empty state")
	}
	s.Meters[meterKey(owner, "svc")] = &Meter{Owner: owner, ServiceID: "svc", Deposit: 10, Active: true}
	if !s.HasActiveMeter(owner, "svc") {
		t.Fatal("expected active meter to be found")
	}
}

func TestCapabilityRevocationAndConsumption(t *testing.T) {
	s := NewState()
	capID := "cap-1"
	if s.IsCapabilityRevoked(capID) {
		t.Fatal("unknown capability should not report revoked")
	}
	units, cost := s.GetCapabilityConsumption(capID)
	if units != 0 || cost != 0 {
		t.Fatal("unknown capability should report zero consumption")
	}
	s.Capabilities[capID] = &CapabilityUsage{ConsumedUnits: 5, ConsumedCost: 50, Revoked: true}
	if !s.IsCapabilityRevoked(capID) {
		t.Fatal("expected capability to be revoked")
	}
	units, cost = s.GetCapabilityConsumption(capID)
	if units != 5 || cost != 50 {
		t.Fatalf("expected (5,50), got (%d,%d)", units, cost)
	}
}

func TestSettlementPayableAndAddPaid(t *testing.T) {
	s := &Settlement{OperatorShare: 100}
	if s.Payable() != 100 {
		t.Fatalf("expected payable 100, got %d", s.Payable())
	}
	s.AddPaid(40)
	if s.Payable() != 60 {
		t.Fatalf("expected payable 60, got %d", s.Payable())
	}
	if s.Status == SettlementClaimed {
		t.Fatal("partial payment must not mark settlement claimed")
	}
	s.AddPaid(1000)
	if s.Payable() != 0 {
		t.Fatalf("expected payable capped at 0, got %d", s.Payable())
	}
	if s.Status != SettlementClaimed {
		t.Fatal("fully paid settlement must transition to Claimed")
	}
	if s.TotalPaid != 100 {
		t.Fatalf("expected total paid capped at operator_share 100, got %d", s.TotalPaid)
	}
}

func TestMarshalUnmarshalCanonicalStateRoundTrip(t *testing.T) {
	s := NewState()
	var a1, a2 Address
	a1[0] = 1
	a2[0] = 2
	s.GetOrCreateAccount(a1).Balance = 10
	s.GetOrCreateAccount(a2).Balance = 20
	s.Meters[meterKey(a1, "svc")] = &Meter{Owner: a1, ServiceID: "svc", Deposit: 5, Active: true}
	s.Capabilities["cap"] = &CapabilityUsage{ConsumedUnits: 1, ConsumedCost: 2}

	data, err := s.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}
	restored, err := UnmarshalCanonicalState(data)
	if err != nil {
		t.Fatalf("UnmarshalCanonicalState failed: %v", err)
	}
	if restored.GetAccount(a1).Balance != 10 || restored.GetAccount(a2).Balance != 20 {
		t.Fatal("restored account balances mismatch")
	}
	if restored.GetMeter(a1, "svc").Deposit != 5 {
		t.Fatal("restored meter deposit mismatch")
	}
}

func TestMarshalCanonicalIsOrderIndependent(t *testing.T) {
	build := func(order []byte) *State {
		s := NewState()
		for _, b := range order {
			var a Address
			a[0] = b
			s.GetOrCreateAccount(a).Balance = uint64(b)
		}
		return s
	}
	s1 := build([]byte{1, 2, 3, 4, 5})
	s2 := build([]byte{5, 4, 3, 2, 1})

	d1, err := s1.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}
	d2, err := s2.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}
	if string(d1) != string(d2) {
		t.Fatal("canonical encoding must be independent of insertion order")
	}
}

func TestStateHashChangesWithContent(t *testing.T) {
	s := NewState()
	h1, err := s.StateHash()
	if err != nil {
		t.Fatalf("StateHash failed: %v", err)
	}
	var a Address
	a[0] = 1
	s.GetOrCreateAccount(a).Balance = 1
	h2, err := s.StateHash()
	if err != nil {
		t.Fatalf("StateHash failed: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected state hash to change after mutation")
	}
}
