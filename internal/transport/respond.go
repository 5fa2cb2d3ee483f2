package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/domain/distribution"
	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/domain/token"
	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/STS-Engineer/llc-backend/internal/repository"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeDomainError maps service errors to HTTP responses. Capability-token
// failures get one deliberately vague message regardless of cause.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrInvalidOrExpired):
		writeError(w, http.StatusForbidden, "invalid or expired link")
	case errors.Is(err, llc.ErrRecordNotFound),
		errors.Is(err, deployment.ErrRecordNotFound),
		errors.Is(err, deployment.ErrUnitNotFound),
		errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, llc.ErrInvalidInput),
		errors.Is(err, llc.ErrMissingReason),
		errors.Is(err, deployment.ErrInvalidInput),
		errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, distribution.ErrUnknownCategory),
		errors.Is(err, distribution.ErrUnknownPlant):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llc.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, user.ErrInvalidCredentials), errors.Is(err, user.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, llc.ErrIllegalTransition),
		errors.Is(err, llc.ErrNotEditable),
		errors.Is(err, llc.ErrNoDistributionTargets),
		errors.Is(err, deployment.ErrDuplicateUnit),
		errors.Is(err, deployment.ErrNotATarget),
		errors.Is(err, deployment.ErrNotDistributing),
		errors.Is(err, deployment.ErrAlreadyDecided),
		errors.Is(err, deployment.ErrNotRejected),
		errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
