package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/agent-shield-gateway/internal/audit"
	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// WriteBatch — пакетная вставка событий аудита (вызывается воркером Trail).
func (r *ShieldRepo) WriteBatch(ctx context.Context, events []audit.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_logs
	numFields := 12
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12)

		vals = append(vals,
			e.ID, e.TraceID, string(e.Vault), string(e.Agent),
			string(e.Action), string(e.Token), e.Amount, string(e.Protocol),
			e.Status, e.Reason, e.Slot, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO audit_logs (id, trace_id, vault_id, agent_addr, action, token, amount, protocol, status, reason, slot, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// FetchLogs возвращает события аудита с фильтрацией по хранилищу и агенту.
// Пустой фильтр означает "все"; лимит защищает от выгрузки всей таблицы.
func (r *ShieldRepo) FetchLogs(ctx context.Context, vault, agent domain.Address, limit int) ([]audit.AuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, trace_id, vault_id, agent_addr, action, token, amount, protocol, status, reason, slot, timestamp
		FROM audit_logs WHERE 1=1`
	args := []interface{}{}

	if vault != "" {
		args = append(args, string(vault))
		query += fmt.Sprintf(" AND vault_id = $%d", len(args))
	}
	if agent != "" {
		args = append(args, string(agent))
		query += fmt.Sprintf(" AND agent_addr = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to fetch audit logs: %w", err)
	}
	defer rows.Close()

	var logs []audit.AuditEvent
	for rows.Next() {
		var e audit.AuditEvent
		var vaultID, agentAddr, action, token, protocol string
		err := rows.Scan(
			&e.ID, &e.TraceID, &vaultID, &agentAddr, &action, &token,
			&e.Amount, &protocol, &e.Status, &e.Reason, &e.Slot, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit log: %w", err)
		}
		e.Vault = domain.Address(vaultID)
		e.Agent = domain.Address(agentAddr)
		e.Action = domain.ActionType(action)
		e.Token = domain.Address(token)
		e.Protocol = domain.Address(protocol)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
