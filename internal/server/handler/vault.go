package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/infra/auth"
	"github.com/xela07ax/agent-shield-gateway/internal/server/service"
	"github.com/xela07ax/agent-shield-gateway/internal/shield"
)

type VaultHandler struct {
	service *service.VaultService
}

func NewVaultHandler(s *service.VaultService) *VaultHandler {
	return &VaultHandler{service: s}
}

type createVaultRequest struct {
	VaultID        uint64         `json:"vault_id"`
	FeeDestination domain.Address `json:"fee_destination"`

	DailySpendingCap       uint64           `json:"daily_spending_cap"`
	MaxTransactionSize     uint64           `json:"max_transaction_size"`
	AllowedTokens          []domain.Address `json:"allowed_tokens"`
	AllowedProtocols       []domain.Address `json:"allowed_protocols"`
	MaxLeverageBps         uint16           `json:"max_leverage_bps"`
	MaxConcurrentPositions uint8            `json:"max_concurrent_positions"`
	DeveloperFeeRate       uint16           `json:"developer_fee_rate"`
}

// Create обрабатывает POST /v1/vaults. Владельцем становится подписант токена.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vault, err := h.service.Initialize(r.Context(), shield.InitializeVaultRequest{
		Owner:                  auth.Actor(r.Context()),
		VaultID:                req.VaultID,
		FeeDestination:         req.FeeDestination,
		DailySpendingCap:       req.DailySpendingCap,
		MaxTransactionSize:     req.MaxTransactionSize,
		AllowedTokens:          req.AllowedTokens,
		AllowedProtocols:       req.AllowedProtocols,
		MaxLeverageBps:         req.MaxLeverageBps,
		MaxConcurrentPositions: req.MaxConcurrentPositions,
		DeveloperFeeRate:       req.DeveloperFeeRate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vault)
}

func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	vault, err := h.service.Get(domain.Address(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vault)
}

type registerAgentRequest struct {
	Agent domain.Address `json:"agent"`
}

func (h *VaultHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vaultID := domain.Address(chi.URLParam(r, "id"))
	if err := h.service.RegisterAgent(r.Context(), auth.Actor(r.Context()), vaultID, req.Agent); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VaultHandler) RevokeAgent(w http.ResponseWriter, r *http.Request) {
	vaultID := domain.Address(chi.URLParam(r, "id"))
	if err := h.service.RevokeAgent(r.Context(), auth.Actor(r.Context()), vaultID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reactivateRequest struct {
	NewAgent *domain.Address `json:"new_agent,omitempty"`
}

func (h *VaultHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	var req reactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vaultID := domain.Address(chi.URLParam(r, "id"))
	if err := h.service.Reactivate(r.Context(), auth.Actor(r.Context()), vaultID, req.NewAgent); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type fundsRequest struct {
	Token  domain.Address `json:"token"`
	Amount uint64         `json:"amount"`
}

func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vaultID := domain.Address(chi.URLParam(r, "id"))
	if err := h.service.Deposit(r.Context(), auth.Actor(r.Context()), vaultID, req.Token, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vaultID := domain.Address(chi.URLParam(r, "id"))
	if err := h.service.Withdraw(r.Context(), auth.Actor(r.Context()), vaultID, req.Token, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *VaultHandler) Close(w http.ResponseWriter, r *http.Request) {
	vaultID := domain.Address(chi.URLParam(r, "id"))
	if err := h.service.Close(r.Context(), auth.Actor(r.Context()), vaultID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuditRing отдает ончейн-подобное кольцо последних 50 расчетов.
// GET /v1/vaults/{id}/transactions
func (h *VaultHandler) AuditRing(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.AuditRing(domain.Address(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Balance отдает кастодиальный остаток по токену.
// GET /v1/vaults/{id}/balance?token=...
func (h *VaultHandler) Balance(w http.ResponseWriter, r *http.Request) {
	vaultID := domain.Address(chi.URLParam(r, "id"))
	token := domain.Address(r.URL.Query().Get("token"))

	balance, err := h.service.Balance(vaultID, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vault":   vaultID,
		"token":   token,
		"balance": balance,
	})
}
