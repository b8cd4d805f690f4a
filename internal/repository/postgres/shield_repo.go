package postgres

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

// ShieldRepo — долговременное хранилище состояний шлюза. In-memory ядро
// остается авторитетным; сюда идет write-through после каждой фиксации
// и холодная загрузка при старте.
type ShieldRepo struct {
	db *sql.DB
}

// NewShieldRepo создает новый экземпляр репозитория
func NewShieldRepo(connString string) *ShieldRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		// В main мы проверим соединение через Ping
		log.Fatal(err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &ShieldRepo{db: db}
}

// Ping проверяет доступность базы при старте
func (r *ShieldRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
