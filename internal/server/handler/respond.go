package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/agent-shield-gateway/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError переводит таксономию отказов ядра в HTTP-статусы.
// Детали AuthorizationFailure наружу не уточняем сверх текста ошибки ядра.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrVaultNotFound), errors.Is(err, domain.ErrInvalidSession):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVaultExists),
		errors.Is(err, domain.ErrSessionExists),
		errors.Is(err, domain.ErrAgentAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidAgentKey),
		errors.Is(err, domain.ErrAgentIsOwner),
		errors.Is(err, domain.ErrInvalidFeeDestination),
		errors.Is(err, domain.ErrVaultNotFrozen),
		errors.Is(err, domain.ErrVaultClosed),
		errors.Is(err, domain.ErrOpenPositionsExist),
		errors.Is(err, domain.ErrInsufficientBalance):
		status = http.StatusBadRequest
	case domain.IsAuthorizationFailure(err):
		status = http.StatusForbidden
	case domain.IsPolicyViolation(err):
		status = http.StatusUnprocessableEntity
	case domain.IsCapacityExhaustion(err):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrOverflow):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}
