package domain

import "testing"

func validPolicy() PolicyConfig {
	return PolicyConfig{
		Vault:                  "vault-1",
		DailySpendingCap:       1000,
		MaxTransactionSize:     500,
		AllowedTokens:          []Address{"tokenA", "tokenB"},
		AllowedProtocols:       []Address{"protA"},
		MaxLeverageBps:         10_000,
		CanOpenPositions:       true,
		MaxConcurrentPositions: 3,
		DeveloperFeeRate:       50,
	}
}

func TestPolicyValidateBounds(t *testing.T) {
	p := validPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	p = validPolicy()
	p.AllowedTokens = make([]Address, MaxAllowedTokens+1)
	if err := p.Validate(); err != ErrTooManyAllowedTokens {
		t.Fatalf("expected ErrTooManyAllowedTokens, got %v", err)
	}

	p = validPolicy()
	p.AllowedProtocols = make([]Address, MaxAllowedProtocols+1)
	if err := p.Validate(); err != ErrTooManyAllowedProtocols {
		t.Fatalf("expected ErrTooManyAllowedProtocols, got %v", err)
	}

	p = validPolicy()
	p.DeveloperFeeRate = MaxDeveloperFeeRate + 1
	if err := p.Validate(); err != ErrDeveloperFeeTooHigh {
		t.Fatalf("expected ErrDeveloperFeeTooHigh, got %v", err)
	}
}

func TestPolicyMembership(t *testing.T) {
	p := validPolicy()

	if !p.IsTokenAllowed("tokenA") || p.IsTokenAllowed("tokenZ") {
		t.Fatal("token whitelist membership broken")
	}
	if !p.IsProtocolAllowed("protA") || p.IsProtocolAllowed("protZ") {
		t.Fatal("protocol whitelist membership broken")
	}
	if !p.IsLeverageWithinLimit(10_000) || p.IsLeverageWithinLimit(10_001) {
		t.Fatal("leverage bound must be inclusive")
	}
}

func TestPolicyUpdateApplyAtomic(t *testing.T) {
	p := validPolicy()
	badTokens := make([]Address, MaxAllowedTokens+1)
	newCap := uint64(42)

	u := PolicyUpdate{DailySpendingCap: &newCap, AllowedTokens: &badTokens}
	if _, err := u.Apply(p); err != ErrTooManyAllowedTokens {
		t.Fatalf("expected ErrTooManyAllowedTokens, got %v", err)
	}
	// Оригинал не тронут
	if p.DailySpendingCap != 1000 || len(p.AllowedTokens) != 2 {
		t.Fatalf("Apply mutated the source policy: %+v", p)
	}
}

func TestPolicyUpdateApplyPartial(t *testing.T) {
	p := validPolicy()
	off := false

	u := PolicyUpdate{CanOpenPositions: &off}
	next, err := u.Apply(p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.CanOpenPositions {
		t.Fatal("flag not applied")
	}
	if next.DailySpendingCap != p.DailySpendingCap || len(next.AllowedTokens) != 2 {
		t.Fatalf("unnamed fields must survive: %+v", next)
	}
}

func TestSessionExpiry(t *testing.T) {
	s := SessionAuthority{Authorized: true, ExpiresAtSlot: 120}

	if s.IsExpired(120) {
		t.Fatal("session must be valid at its expiry slot (inclusive)")
	}
	if !s.IsExpired(121) {
		t.Fatal("session must be expired past its expiry slot")
	}
	if !s.IsValid(120) || s.IsValid(121) {
		t.Fatal("IsValid must combine authorized and expiry")
	}

	// Saturating: переполнение счетчика слотов не роняет допуск
	if got := CalculateExpiry(^uint64(0) - 5); got != ^uint64(0) {
		t.Fatalf("expected saturation at max slot, got %d", got)
	}
	if got := CalculateExpiry(100); got != 100+SessionExpirySlots {
		t.Fatalf("expected %d, got %d", 100+SessionExpirySlots, got)
	}
}
