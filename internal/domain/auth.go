package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — полезная нагрузка RS256-токена. Actor — адрес подписанта
// (владелец или агент): все проверки авторизации в ядре сравнивают именно его,
// а не поля из тела запроса.
type CustomClaims struct {
	Actor  Address         `json:"actor"`
	Scopes map[string]bool `json:"scopes"` // Напр. "vault.admin": true
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Никогда не отправляем на фронт
	Actor        Address         `json:"actor"` // On-chain адрес пользователя
	Scopes       map[string]bool `json:"scopes"`
	CreatedAt    time.Time       `json:"created_at"`
}
