package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/infra/auth"
	"github.com/xela07ax/agent-shield-gateway/internal/shield"
)

// SessionHandler — горячий путь шлюза: допуск и расчет сессий идут в ядро
// напрямую, минуя прикладной слой.
type SessionHandler struct {
	engine *shield.Engine
}

func NewSessionHandler(e *shield.Engine) *SessionHandler {
	return &SessionHandler{engine: e}
}

type authorizeRequest struct {
	ActionType     domain.ActionType `json:"action_type"`
	Token          domain.Address    `json:"token"`
	Amount         uint64            `json:"amount"`
	TargetProtocol domain.Address    `json:"target_protocol"`
	LeverageBps    *uint16           `json:"leverage_bps,omitempty"`
}

type authorizeResponse struct {
	Session           domain.SessionAuthority `json:"session"`
	RollingSpendAfter uint64                  `json:"rolling_spend_after"`
	DailyCap          uint64                  `json:"daily_cap"`
}

// Authorize обрабатывает POST /v1/vaults/{id}/authorize.
// Identity агента — подписант токена, не поле тела запроса.
func (h *SessionHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	result, err := h.engine.ValidateAndAuthorize(r.Context(), shield.AuthorizeRequest{
		Agent:          auth.Actor(r.Context()),
		Vault:          domain.Address(chi.URLParam(r, "id")),
		ActionType:     req.ActionType,
		Token:          req.Token,
		Amount:         req.Amount,
		TargetProtocol: req.TargetProtocol,
		LeverageBps:    req.LeverageBps,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authorizeResponse{
		Session:           result.Session,
		RollingSpendAfter: result.RollingSpendAfter,
		DailyCap:          result.DailyCap,
	})
}

type finalizeRequest struct {
	Agent   domain.Address `json:"agent"` // Чья сессия закрывается
	Success bool           `json:"success"`
}

// Finalize обрабатывает POST /v1/vaults/{id}/finalize. До истечения сессии
// вызов разрешен только ее агенту; после — кому угодно (permissionless cleanup).
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	caller := auth.Actor(r.Context())
	agent := req.Agent
	if agent.IsZero() {
		agent = caller
	}

	result, err := h.engine.FinalizeSession(r.Context(), shield.FinalizeRequest{
		Caller:  caller,
		Vault:   domain.Address(chi.URLParam(r, "id")),
		Agent:   agent,
		Success: req.Success,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
