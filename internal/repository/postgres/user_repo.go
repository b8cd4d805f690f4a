package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

// GetUserByUsername достает пользователя для аутентификации.
// Возвращает (nil, nil), если пользователь не найден — различать
// "нет пользователя" и "неверный пароль" снаружи нельзя.
func (r *ShieldRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, actor_addr, scopes, created_at
		FROM users WHERE username = $1`

	u := &domain.User{}
	var actor string
	var scopesRaw []byte
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &actor, &scopesRaw, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to fetch user: %w", err)
	}

	u.Actor = domain.Address(actor)
	if err := json.Unmarshal(scopesRaw, &u.Scopes); err != nil {
		return nil, fmt.Errorf("postgres: corrupt scopes for user %s: %w", username, err)
	}
	return u, nil
}
