package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-shield-gateway/internal/audit"
	"github.com/xela07ax/agent-shield-gateway/internal/infra"
	"github.com/xela07ax/agent-shield-gateway/internal/infra/auth"
	"github.com/xela07ax/agent-shield-gateway/internal/server/handler"
)

type GatewayServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler    *handler.AuthHandler    // /auth/token
	vaultHandler   *handler.VaultHandler   // /v1/vaults
	policyHandler  *handler.PolicyHandler  // /v1/vaults/{id}/policy
	sessionHandler *handler.SessionHandler // authorize / finalize (Hot Path)
	auditHandler   *handler.AuditHandler   // /v1/audit (Logs)
}

// NewGatewayServer инициализирует HTTP-поверхность шлюза со всеми зависимостями
func NewGatewayServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	vaultH *handler.VaultHandler,
	policyH *handler.PolicyHandler,
	sessionH *handler.SessionHandler,
	auditH *handler.AuditHandler,
) *GatewayServer {
	s := &GatewayServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("gateway-api"),
		cfg:            cfg,
		authValidator:  validator,
		authHandler:    authH,
		vaultHandler:   vaultH,
		policyHandler:  policyH,
		sessionHandler: sessionH,
		auditHandler:   auditH,
	}

	s.routes()
	return s
}

// TracingMiddleware инициализирует Trace-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Пытаемся достать ID из заголовка (если пришел от агента/прокси)
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := audit.WithTraceID(r.Context(), traceID)

		// Добавляем в ответ, чтобы клиент тоже знал ID своего запроса
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *GatewayServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Хранилища: lifecycle владельца + Hot Path агента
		r.Route("/v1/vaults", func(r chi.Router) {
			r.Post("/", s.vaultHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.vaultHandler.Get)
				r.Post("/agent", s.vaultHandler.RegisterAgent)      // Привязка ключа агента
				r.Delete("/agent", s.vaultHandler.RevokeAgent)      // Kill-switch
				r.Post("/reactivate", s.vaultHandler.Reactivate)    // Разморозка
				r.Post("/deposit", s.vaultHandler.Deposit)          // Средства владельца
				r.Post("/withdraw", s.vaultHandler.Withdraw)
				r.Post("/close", s.vaultHandler.Close)              // Терминальное закрытие
				r.Get("/balance", s.vaultHandler.Balance)
				r.Get("/transactions", s.vaultHandler.AuditRing)    // Кольцо последних 50

				// Политика (Policy Engine)
				r.Get("/policy", s.policyHandler.Get)
				r.Patch("/policy", s.policyHandler.Patch)

				// Hot Path: допуск и расчет сессий
				r.Post("/authorize", s.sessionHandler.Authorize)
				r.Post("/finalize", s.sessionHandler.Finalize)
			})
		})

		// Аудит и Логи (Observability)
		r.Get("/v1/audit", s.auditHandler.GetLogs)
	})
}

// ServeHTTP позволяет использовать GatewayServer как стандартный http.Handler
func (s *GatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
