package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/shield"
)

// SaveVault — upsert записи хранилища по адресу.
func (r *ShieldRepo) SaveVault(ctx context.Context, v *domain.AgentVault) error {
	query := `
		INSERT INTO vaults (id, owner_addr, agent_addr, fee_destination, vault_id, status,
			total_transactions, total_volume, open_positions, total_fees_collected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			agent_addr = EXCLUDED.agent_addr,
			fee_destination = EXCLUDED.fee_destination,
			status = EXCLUDED.status,
			total_transactions = EXCLUDED.total_transactions,
			total_volume = EXCLUDED.total_volume,
			open_positions = EXCLUDED.open_positions,
			total_fees_collected = EXCLUDED.total_fees_collected,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		string(v.ID), string(v.Owner), string(v.Agent), string(v.FeeDestination),
		v.VaultID, string(v.Status),
		v.TotalTransactions, v.TotalVolume, v.OpenPositions, v.TotalFeesCollected,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save vault: %w", err)
	}
	return nil
}

// SavePolicy — upsert политики. Белые списки храним как jsonb: членство
// проверяет ядро, базе достаточно непрозрачного снимка.
func (r *ShieldRepo) SavePolicy(ctx context.Context, p *domain.PolicyConfig) error {
	tokens, err := json.Marshal(p.AllowedTokens)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal allowed tokens: %w", err)
	}
	protocols, err := json.Marshal(p.AllowedProtocols)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal allowed protocols: %w", err)
	}

	query := `
		INSERT INTO policies (vault_id, daily_spending_cap, max_transaction_size,
			allowed_tokens, allowed_protocols, max_leverage_bps, can_open_positions,
			max_concurrent_positions, developer_fee_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (vault_id) DO UPDATE SET
			daily_spending_cap = EXCLUDED.daily_spending_cap,
			max_transaction_size = EXCLUDED.max_transaction_size,
			allowed_tokens = EXCLUDED.allowed_tokens,
			allowed_protocols = EXCLUDED.allowed_protocols,
			max_leverage_bps = EXCLUDED.max_leverage_bps,
			can_open_positions = EXCLUDED.can_open_positions,
			max_concurrent_positions = EXCLUDED.max_concurrent_positions,
			developer_fee_rate = EXCLUDED.developer_fee_rate,
			updated_at = NOW()`

	_, err = r.db.ExecContext(ctx, query,
		string(p.Vault), p.DailySpendingCap, p.MaxTransactionSize,
		tokens, protocols, p.MaxLeverageBps, p.CanOpenPositions,
		p.MaxConcurrentPositions, p.DeveloperFeeRate,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save policy: %w", err)
	}
	return nil
}

// SaveTracker — upsert скользящего окна и аудит-кольца одним jsonb-снимком.
func (r *ShieldRepo) SaveTracker(ctx context.Context, t *shield.Tracker) error {
	snapshot, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal tracker: %w", err)
	}

	query := `
		INSERT INTO trackers (vault_id, snapshot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (vault_id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, string(t.Vault), snapshot); err != nil {
		return fmt.Errorf("postgres: failed to save tracker: %w", err)
	}
	return nil
}

// SaveBalances — upsert кастодиальных остатков хранилища.
func (r *ShieldRepo) SaveBalances(ctx context.Context, vault domain.Address, balances map[domain.Address]uint64) error {
	snapshot, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal balances: %w", err)
	}

	query := `
		INSERT INTO balances (vault_id, snapshot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (vault_id) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, string(vault), snapshot); err != nil {
		return fmt.Errorf("postgres: failed to save balances: %w", err)
	}
	return nil
}

// LoadStates — холодная загрузка всех незакрытых хранилищ при старте.
// Closed-хранилища остаются в базе для истории, но в память не поднимаются.
func (r *ShieldRepo) LoadStates(ctx context.Context) ([]*shield.VaultState, error) {
	query := `
		SELECT v.id, v.owner_addr, v.agent_addr, v.fee_destination, v.vault_id, v.status,
			v.total_transactions, v.total_volume, v.open_positions, v.total_fees_collected, v.created_at,
			p.daily_spending_cap, p.max_transaction_size, p.allowed_tokens, p.allowed_protocols,
			p.max_leverage_bps, p.can_open_positions, p.max_concurrent_positions, p.developer_fee_rate,
			COALESCE(t.snapshot, 'null'), COALESCE(b.snapshot, 'null')
		FROM vaults v
		JOIN policies p ON p.vault_id = v.id
		LEFT JOIN trackers t ON t.vault_id = v.id
		LEFT JOIN balances b ON b.vault_id = v.id
		WHERE v.status != 'CLOSED'`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load vault states: %w", err)
	}
	defer rows.Close()

	var states []*shield.VaultState
	for rows.Next() {
		var (
			v                          domain.AgentVault
			p                          domain.PolicyConfig
			id, owner, agent, feeDest  string
			status                     string
			tokensRaw, protocolsRaw    []byte
			trackerRaw, balancesRaw    []byte
		)

		err := rows.Scan(
			&id, &owner, &agent, &feeDest, &v.VaultID, &status,
			&v.TotalTransactions, &v.TotalVolume, &v.OpenPositions, &v.TotalFeesCollected, &v.CreatedAt,
			&p.DailySpendingCap, &p.MaxTransactionSize, &tokensRaw, &protocolsRaw,
			&p.MaxLeverageBps, &p.CanOpenPositions, &p.MaxConcurrentPositions, &p.DeveloperFeeRate,
			&trackerRaw, &balancesRaw,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan vault state: %w", err)
		}

		v.ID = domain.Address(id)
		v.Owner = domain.Address(owner)
		v.Agent = domain.Address(agent)
		v.FeeDestination = domain.Address(feeDest)
		v.Status = domain.VaultStatus(status)
		p.Vault = v.ID

		if err := json.Unmarshal(tokensRaw, &p.AllowedTokens); err != nil {
			return nil, fmt.Errorf("postgres: corrupt allowed_tokens for %s: %w", id, err)
		}
		if err := json.Unmarshal(protocolsRaw, &p.AllowedProtocols); err != nil {
			return nil, fmt.Errorf("postgres: corrupt allowed_protocols for %s: %w", id, err)
		}

		tracker := shield.NewTracker(v.ID)
		if string(trackerRaw) != "null" {
			if err := json.Unmarshal(trackerRaw, tracker); err != nil {
				return nil, fmt.Errorf("postgres: corrupt tracker snapshot for %s: %w", id, err)
			}
		}

		balances := make(map[domain.Address]uint64)
		if string(balancesRaw) != "null" {
			if err := json.Unmarshal(balancesRaw, &balances); err != nil {
				return nil, fmt.Errorf("postgres: corrupt balances snapshot for %s: %w", id, err)
			}
		}

		states = append(states, &shield.VaultState{
			Vault:    v,
			Policy:   p,
			Tracker:  tracker,
			Balances: balances,
		})
	}
	return states, rows.Err()
}
