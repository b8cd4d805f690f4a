package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-shield-gateway/internal/audit"
	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/infra"
	infraauth "github.com/xela07ax/agent-shield-gateway/internal/infra/auth"
	"github.com/xela07ax/agent-shield-gateway/internal/notifier"
	"github.com/xela07ax/agent-shield-gateway/internal/repository/postgres"
	"github.com/xela07ax/agent-shield-gateway/internal/server"
	"github.com/xela07ax/agent-shield-gateway/internal/server/handler"
	"github.com/xela07ax/agent-shield-gateway/internal/server/service"
	"github.com/xela07ax/agent-shield-gateway/internal/shield"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Fatal("database.url (или DATABASE_URL) обязателен")
	}

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	repo := postgres.NewShieldRepo(cfg.Database.URL)
	if err := repo.Ping(appCtx); err != nil {
		logger.Fatal("postgres is unreachable", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 3. Метрики
	reg := prometheus.NewRegistry()
	metrics := shield.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	// 4. Аудит-след (асинхронный batch writer в Postgres)
	trail := audit.NewTrail(repo, logger, metrics.AuditBufferFill)
	trail.Start()
	defer trail.Stop()

	// 5. Уведомления (webhook опционален)
	var emitter notifier.Emitter = notifier.Noop{}
	if cfg.Shield.WebhookURL != "" {
		wh := notifier.NewWebhookEmitter(cfg.Shield.WebhookURL, logger)
		wh.Start(appCtx)
		defer wh.Stop()
		emitter = wh
	}

	// 6. Холодная загрузка состояний из Postgres
	store := shield.NewStore()
	states, err := repo.LoadStates(appCtx)
	if err != nil {
		logger.Fatal("failed to load vault states", zap.Error(err))
	}
	store.Load(states)
	logger.Info("vault states loaded", zap.Int("count", len(states)))

	// 7. Распределенный kill-switch (L1 map + L2 Redis set + Pub/Sub)
	freeze := shield.NewFreezeManager(rdb, logger)
	if err := freeze.Init(appCtx); err != nil {
		// Redis может быть недоступен на старте: остаемся на локальном статусе
		logger.Error("failed to init freeze manager, continuing degraded", zap.Error(err))
	}
	go freeze.StartListener(appCtx)

	var frozenIDs []domain.Address
	for _, st := range states {
		if st.Vault.Status == domain.VaultFrozen {
			frozenIDs = append(frozenIDs, st.Vault.ID)
		}
	}
	if err := freeze.Warmup(appCtx, frozenIDs); err != nil {
		logger.Error("freeze warm-up failed", zap.Error(err))
	}

	// 8. Сборка ядра
	engine := shield.NewEngine(
		store,
		shield.NewSessionStore(),
		shield.NewLedger(),
		freeze,
		shield.SystemClock{},
		metrics,
		trail,
		emitter,
		repo,
		logger,
	)

	// 9. Auth (RS256)
	publicKey, err := infraauth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse RSA public key", zap.Error(err))
	}
	privateKey, err := infraauth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse RSA private key", zap.Error(err))
	}
	validator := infraauth.NewBaseValidator(publicKey)

	// 10. Сервисы и HTTP-поверхность
	vaultSvc := service.NewVaultService(engine, freeze, rdb, logger)
	authSvc := service.NewAuthService(repo, privateKey, cfg.Auth.TokenTTL)
	auditSvc := service.NewAuditService(repo)

	gw := server.NewGatewayServer(
		cfg,
		logger,
		validator,
		handler.NewAuthHandler(authSvc),
		handler.NewVaultHandler(vaultSvc),
		handler.NewPolicyHandler(vaultSvc),
		handler.NewSessionHandler(engine),
		handler.NewAuditHandler(auditSvc),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      gw,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 11. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("agent shield gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("gateway exited properly")
}
