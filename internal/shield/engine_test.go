package shield

import (
	"context"
	"testing"
	"time"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// manualClock позволяет тестам двигать время и слоты детерминированно.
type manualClock struct {
	now  time.Time
	slot uint64
}

func (c *manualClock) Now() time.Time { return c.now }
func (c *manualClock) Slot() uint64   { return c.slot }

func (c *manualClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
	c.slot += uint64(d / SlotLength)
}

const (
	testOwner    = domain.Address("owner-7f3kQbW9")
	testAgent    = domain.Address("agent-Hx2mRt5c")
	testToken    = domain.Address("tokenUSDC11111")
	testProtocol = domain.Address("protocolJUP111")
	testFeeDest  = domain.Address("feedest-9sLp0a")
)

func newTestClock() *manualClock {
	return &manualClock{
		now:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		slot: 1_000_000,
	}
}

func newTestEngine(clock Clock) *Engine {
	return NewEngine(
		NewStore(),
		NewSessionStore(),
		NewLedger(),
		nil, // без распределенного kill-switch
		clock,
		nil, nil, nil, nil, nil,
	)
}

// newFundedVault поднимает активное хранилище с агентом и балансом.
func newFundedVault(t *testing.T, e *Engine, balance uint64) domain.Address {
	t.Helper()
	ctx := context.Background()

	vault, err := e.InitializeVault(ctx, InitializeVaultRequest{
		Owner:                  testOwner,
		VaultID:                1,
		FeeDestination:         testFeeDest,
		DailySpendingCap:       1_000_000_000,
		MaxTransactionSize:     100_000_000,
		AllowedTokens:          []domain.Address{testToken},
		AllowedProtocols:       []domain.Address{testProtocol},
		MaxLeverageBps:         50_000, // 5x
		MaxConcurrentPositions: 3,
		DeveloperFeeRate:       50,
	})
	if err != nil {
		t.Fatalf("InitializeVault: %v", err)
	}
	if err := e.RegisterAgent(ctx, testOwner, vault.ID, testAgent); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if balance > 0 {
		if err := e.Deposit(ctx, testOwner, vault.ID, testToken, balance); err != nil {
			t.Fatalf("Deposit: %v", err)
		}
	}
	return vault.ID
}

func authorizeOK(t *testing.T, e *Engine, vault domain.Address, action domain.ActionType, amount uint64) *AuthorizeResult {
	t.Helper()
	res, err := e.ValidateAndAuthorize(context.Background(), AuthorizeRequest{
		Agent:          testAgent,
		Vault:          vault,
		ActionType:     action,
		Token:          testToken,
		Amount:         amount,
		TargetProtocol: testProtocol,
	})
	if err != nil {
		t.Fatalf("ValidateAndAuthorize(%s, %d): %v", action, amount, err)
	}
	return res
}

func TestDeriveVaultAddressDeterministic(t *testing.T) {
	a := DeriveVaultAddress(testOwner, 1)
	b := DeriveVaultAddress(testOwner, 1)
	if a != b {
		t.Fatalf("same inputs produced different addresses: %s vs %s", a, b)
	}
	if a == DeriveVaultAddress(testOwner, 2) {
		t.Fatal("different vault id should produce a different address")
	}
	if a == DeriveVaultAddress(testAgent, 1) {
		t.Fatal("different owner should produce a different address")
	}
}

func TestCreateVaultCollision(t *testing.T) {
	e := newTestEngine(newTestClock())
	newFundedVault(t, e, 0)

	_, err := e.InitializeVault(context.Background(), InitializeVaultRequest{
		Owner:          testOwner,
		VaultID:        1,
		FeeDestination: testFeeDest,
	})
	if err != domain.ErrVaultExists {
		t.Fatalf("expected ErrVaultExists on duplicate (owner, vault_id), got %v", err)
	}
}
