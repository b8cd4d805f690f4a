package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
	"github.com/xela07ax/agent-shield-gateway/internal/infra/auth"
	"github.com/xela07ax/agent-shield-gateway/internal/server/service"
)

type PolicyHandler struct {
	service *service.VaultService
}

func NewPolicyHandler(s *service.VaultService) *PolicyHandler {
	return &PolicyHandler{service: s}
}

// Get отдает действующую политику хранилища.
// GET /v1/vaults/{id}/policy
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy, err := h.service.GetPolicy(domain.Address(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// Patch применяет частичное обновление политики. Поля, отсутствующие в теле,
// не меняются; нарушение любого инварианта отклоняет обновление целиком.
// PATCH /v1/vaults/{id}/policy
func (h *PolicyHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var update domain.PolicyUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	vaultID := domain.Address(chi.URLParam(r, "id"))
	policy, err := h.service.UpdatePolicy(r.Context(), auth.Actor(r.Context()), vaultID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}
