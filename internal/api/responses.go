package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/services"
	"github.com/verichain-labs/verification-node/internal/log"
	"github.com/verichain-labs/verification-node/internal/policy"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

type errorResponse struct {
	Error string `json:"error"`
	Chain string `json:"chain,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error(ctx, "writing http response", "err", err)
	}
}

// writeError maps the service error taxonomy onto http status codes. The
// originating chain is surfaced when the error carries one.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var chainError *services.ChainError
	if errors.As(err, &chainError) {
		resp.Chain = string(chainError.Chain)
		resp.Error = chainError.Unwrap().Error()
	}
	writeJSON(ctx, w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, policy.ErrFeeOutOfRange),
		errors.Is(err, policy.ErrPromptEmpty),
		errors.Is(err, policy.ErrPromptTooLong),
		errors.Is(err, policy.ErrModelEmpty),
		errors.Is(err, policy.ErrModelTooLong),
		errors.Is(err, policy.ErrTimestampBeforeEpoch),
		errors.Is(err, domain.ErrUnsupportedChain),
		errors.Is(err, services.ErrEmptyProof),
		errors.Is(err, services.ErrInvalidFeeBounds),
		errors.Is(err, services.ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrUnknownRequest),
		errors.Is(err, repositories.ErrRequestDoesNotExist),
		errors.Is(err, repositories.ErrCertificateDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyFulfilled),
		errors.Is(err, services.ErrAlreadyProcessed),
		errors.Is(err, services.ErrDuplicateRequest),
		errors.Is(err, services.ErrCertificateExists),
		errors.Is(err, services.ErrAttestationMismatch),
		errors.Is(err, services.ErrInvalidAttestation),
		errors.Is(err, services.ErrNotYetExpired):
		return http.StatusConflict
	case errors.Is(err, services.ErrRequestExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrRateLimitExceeded),
		errors.Is(err, services.ErrDailyLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrFeeTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
