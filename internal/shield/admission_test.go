package shield

import (
	"context"
	"testing"
	"time"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

func TestAuthorizeHappyPath(t *testing.T) {
	clock := newTestClock()
	e := newTestEngine(clock)
	vault := newFundedVault(t, e, 0)

	res := authorizeOK(t, e, vault, domain.ActionSwap, 500)

	s := res.Session
	if !s.Authorized {
		t.Fatal("session must carry authorized=true")
	}
	if s.AuthorizedAmount != 500 || s.AuthorizedToken != testToken || s.AuthorizedProtocol != testProtocol {
		t.Fatalf("session params do not echo the approved request: %+v", s)
	}
	if s.ExpiresAtSlot != clock.slot+domain.SessionExpirySlots {
		t.Fatalf("expected expiry at slot %d, got %d", clock.slot+domain.SessionExpirySlots, s.ExpiresAtSlot)
	}
	if res.RollingSpendAfter != 500 {
		t.Fatalf("expected rolling spend 500 after booking, got %d", res.RollingSpendAfter)
	}
}

func TestAuthorizeDenials(t *testing.T) {
	ctx := context.Background()

	base := func() AuthorizeRequest {
		return AuthorizeRequest{
			Agent:          testAgent,
			ActionType:     domain.ActionSwap,
			Token:          testToken,
			Amount:         500,
			TargetProtocol: testProtocol,
		}
	}
	highLev := uint16(60_000)

	cases := []struct {
		name    string
		mutate  func(*AuthorizeRequest)
		wantErr error
	}{
		{"unknown signer", func(r *AuthorizeRequest) { r.Agent = "someone-else" }, domain.ErrUnauthorizedAgent},
		{"zero amount", func(r *AuthorizeRequest) { r.Amount = 0 }, domain.ErrTransactionTooLarge},
		{"token not whitelisted", func(r *AuthorizeRequest) { r.Token = "tokenEVIL" }, domain.ErrTokenNotAllowed},
		{"protocol not whitelisted", func(r *AuthorizeRequest) { r.TargetProtocol = "protEVIL" }, domain.ErrProtocolNotAllowed},
		{"oversized transaction", func(r *AuthorizeRequest) { r.Amount = 100_000_001 }, domain.ErrTransactionTooLarge},
		{"leverage above cap", func(r *AuthorizeRequest) { r.LeverageBps = &highLev }, domain.ErrLeverageTooHigh},
		{"invalid action", func(r *AuthorizeRequest) { r.ActionType = "TELEPORT" }, domain.ErrInvalidAction},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(newTestClock())
			vault := newFundedVault(t, e, 0)

			req := base()
			req.Vault = vault
			tc.mutate(&req)

			if _, err := e.ValidateAndAuthorize(ctx, req); err != tc.wantErr {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}

			// Отказ атомарен: трата не забронирована, сессии нет
			if e.sessions.Len() != 0 {
				t.Fatal("denied admission must not leave a session behind")
			}
			e.store.View(vault, func(state *VaultState) error {
				if len(state.Tracker.RollingSpends) != 0 {
					t.Fatal("denied admission must not book a spend entry")
				}
				return nil
			})
		})
	}
}

func TestAuthorizeDailyCapScenario(t *testing.T) {
	// Cap 1000, max_tx 500: 400 + 400 проходят, 300 уже не влезает
	clock := newTestClock()
	e := newTestEngine(clock)
	ctx := context.Background()

	v, err := e.InitializeVault(ctx, InitializeVaultRequest{
		Owner:              testOwner,
		VaultID:            7,
		FeeDestination:     testFeeDest,
		DailySpendingCap:   1000,
		MaxTransactionSize: 500,
		AllowedTokens:      []domain.Address{testToken},
		AllowedProtocols:   []domain.Address{testProtocol},
	})
	if err != nil {
		t.Fatalf("InitializeVault: %v", err)
	}
	if err := e.RegisterAgent(ctx, testOwner, v.ID, testAgent); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	spend := func(amount uint64) error {
		_, err := e.ValidateAndAuthorize(ctx, AuthorizeRequest{
			Agent: testAgent, Vault: v.ID, ActionType: domain.ActionSwap,
			Token: testToken, Amount: amount, TargetProtocol: testProtocol,
		})
		if err != nil {
			return err
		}
		// Освобождаем слот сессии для следующего допуска
		_, err = e.FinalizeSession(ctx, FinalizeRequest{
			Caller: testAgent, Vault: v.ID, Agent: testAgent, Success: true,
		})
		return err
	}

	if err := spend(400); err != nil {
		t.Fatalf("first 400: %v", err)
	}
	if err := spend(400); err != nil {
		t.Fatalf("second 400: %v", err)
	}
	if err := spend(300); err != domain.ErrDailyCapExceeded {
		t.Fatalf("expected ErrDailyCapExceeded at 800+300, got %v", err)
	}

	// Спустя сутки окно пустеет и лимит доступен снова
	clock.advance(25 * time.Hour)
	if err := spend(500); err != nil {
		t.Fatalf("spend after window rollover: %v", err)
	}
}

func TestAuthorizeSecondSessionRejected(t *testing.T) {
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 0)

	authorizeOK(t, e, vault, domain.ActionSwap, 100)

	_, err := e.ValidateAndAuthorize(context.Background(), AuthorizeRequest{
		Agent: testAgent, Vault: vault, ActionType: domain.ActionSwap,
		Token: testToken, Amount: 100, TargetProtocol: testProtocol,
	})
	if err != domain.ErrSessionExists {
		t.Fatalf("expected ErrSessionExists while a session is live, got %v", err)
	}
}

func TestAuthorizeOpenPositionGates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 0)

	// Набираем 3 открытые позиции (потолок из newFundedVault)
	for i := 0; i < 3; i++ {
		authorizeOK(t, e, vault, domain.ActionOpenPosition, 100)
		if _, err := e.FinalizeSession(ctx, FinalizeRequest{
			Caller: testAgent, Vault: vault, Agent: testAgent, Success: true,
		}); err != nil {
			t.Fatalf("finalize open #%d: %v", i, err)
		}
	}

	_, err := e.ValidateAndAuthorize(ctx, AuthorizeRequest{
		Agent: testAgent, Vault: vault, ActionType: domain.ActionOpenPosition,
		Token: testToken, Amount: 100, TargetProtocol: testProtocol,
	})
	if err != domain.ErrTooManyPositions {
		t.Fatalf("expected ErrTooManyPositions at ceiling, got %v", err)
	}

	// Запрет открытия позиций политикой
	off := false
	if _, err := e.UpdatePolicy(ctx, testOwner, vault, domain.PolicyUpdate{CanOpenPositions: &off}); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}
	_, err = e.ValidateAndAuthorize(ctx, AuthorizeRequest{
		Agent: testAgent, Vault: vault, ActionType: domain.ActionOpenPosition,
		Token: testToken, Amount: 100, TargetProtocol: testProtocol,
	})
	if err != domain.ErrPositionOpeningDisallowed {
		t.Fatalf("expected ErrPositionOpeningDisallowed, got %v", err)
	}

	// Закрывать существующие позиции по-прежнему можно
	authorizeOK(t, e, vault, domain.ActionClosePosition, 100)
}

func TestAuthorizeFrozenVault(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(newTestClock())
	vault := newFundedVault(t, e, 0)

	if err := e.RevokeAgent(ctx, testOwner, vault); err != nil {
		t.Fatalf("RevokeAgent: %v", err)
	}

	// Агент очищен — его подпись больше не узнается
	_, err := e.ValidateAndAuthorize(ctx, AuthorizeRequest{
		Agent: testAgent, Vault: vault, ActionType: domain.ActionSwap,
		Token: testToken, Amount: 100, TargetProtocol: testProtocol,
	})
	if err != domain.ErrUnauthorizedAgent {
		t.Fatalf("expected ErrUnauthorizedAgent after revoke, got %v", err)
	}
}
