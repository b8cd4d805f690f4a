package shield

import (
	"testing"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

func TestRollingSpendWindowBoundary(t *testing.T) {
	tr := NewTracker("vault-1")
	now := int64(1_800_000_000)

	// Ровно на границе окна (now - 86400) — запись еще живая
	if err := tr.RecordSpend(testToken, 100, now-domain.RollingWindowSeconds); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}
	// На секунду старше — мертвая
	tr.RollingSpends = append(tr.RollingSpends, domain.SpendEntry{
		Token: testToken, Amount: 500, Timestamp: now - domain.RollingWindowSeconds - 1,
	})

	total, err := tr.GetRollingSpend(testToken, now)
	if err != nil {
		t.Fatalf("GetRollingSpend: %v", err)
	}
	if total != 100 {
		t.Fatalf("expected boundary entry kept and stale dropped (total 100), got %d", total)
	}
	if len(tr.RollingSpends) != 1 {
		t.Fatalf("expected stale entry pruned, window has %d entries", len(tr.RollingSpends))
	}
}

func TestRollingSpendIgnoresOtherTokens(t *testing.T) {
	tr := NewTracker("vault-1")
	now := int64(1_800_000_000)

	tr.RecordSpend(testToken, 100, now)
	tr.RecordSpend("tokenSOL", 999, now)

	total, err := tr.GetRollingSpend(testToken, now)
	if err != nil {
		t.Fatalf("GetRollingSpend: %v", err)
	}
	if total != 100 {
		t.Fatalf("expected per-token sum 100, got %d", total)
	}
}

func TestRecordSpendCapacityFailClosed(t *testing.T) {
	tr := NewTracker("vault-1")
	now := int64(1_800_000_000)

	for i := 0; i < domain.MaxSpendEntries; i++ {
		if err := tr.RecordSpend(testToken, 1, now); err != nil {
			t.Fatalf("entry %d rejected unexpectedly: %v", i, err)
		}
	}

	// Окно полно живыми записями: вытеснять нельзя, только отказать
	if err := tr.RecordSpend(testToken, 1, now); err != domain.ErrTooManySpendEntries {
		t.Fatalf("expected ErrTooManySpendEntries at capacity, got %v", err)
	}
	if len(tr.RollingSpends) != domain.MaxSpendEntries {
		t.Fatalf("failed insert must not mutate the window: %d entries", len(tr.RollingSpends))
	}
}

func TestRecordSpendCapacityFreedByPrune(t *testing.T) {
	tr := NewTracker("vault-1")
	now := int64(1_800_000_000)

	for i := 0; i < domain.MaxSpendEntries; i++ {
		tr.RecordSpend(testToken, 1, now)
	}

	// Сутки спустя все записи мертвы — емкость освобождается сама
	later := now + domain.RollingWindowSeconds + 1
	if err := tr.RecordSpend(testToken, 1, later); err != nil {
		t.Fatalf("expected insert after window rollover, got %v", err)
	}
	if len(tr.RollingSpends) != 1 {
		t.Fatalf("expected 1 live entry after prune, got %d", len(tr.RollingSpends))
	}
}

func TestAuditRingEvictsOldest(t *testing.T) {
	tr := NewTracker("vault-1")

	for i := 0; i < domain.MaxRecentTransactions+3; i++ {
		tr.RecordTransaction(domain.TransactionRecord{
			Timestamp:  int64(i),
			ActionType: domain.ActionSwap,
			Token:      testToken,
			Amount:     uint64(i),
		})
	}

	if len(tr.RecentTransactions) != domain.MaxRecentTransactions {
		t.Fatalf("ring overflowed: %d records", len(tr.RecentTransactions))
	}
	// Вытеснены ровно 3 старейшие, порядок вставки сохранен
	if got := tr.RecentTransactions[0].Timestamp; got != 3 {
		t.Fatalf("expected oldest surviving record ts=3, got %d", got)
	}
	last := tr.RecentTransactions[len(tr.RecentTransactions)-1]
	if last.Timestamp != int64(domain.MaxRecentTransactions+2) {
		t.Fatalf("expected newest record last, got ts=%d", last.Timestamp)
	}
}

func TestRollingSpendOverflowIsHardFailure(t *testing.T) {
	tr := NewTracker("vault-1")
	now := int64(1_800_000_000)

	tr.RecordSpend(testToken, ^uint64(0), now)
	tr.RecordSpend(testToken, 1, now)

	if _, err := tr.GetRollingSpend(testToken, now); err != domain.ErrOverflow {
		t.Fatalf("expected ErrOverflow on sum wraparound, got %v", err)
	}
}
