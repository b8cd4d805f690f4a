package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/server/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(s *service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает события долговременного следа с поддержкой фильтрации
// GET /v1/audit?vault=...&agent=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	vault := domain.Address(r.URL.Query().Get("vault"))
	agent := domain.Address(r.URL.Query().Get("agent"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.service.FetchLogs(r.Context(), vault, agent, limit)
	if err != nil {
		http.Error(w, "Failed to fetch audit logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
