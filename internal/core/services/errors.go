package services

import (
	"errors"
	"fmt"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

// Admission errors. Nothing is charged and no state is mutated when these are
// returned.
var (
	// ErrRateLimitExceeded another request was accepted inside the per-account window
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrDailyLimitExceeded the account reached the daily request cap
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	// ErrInvalidFeeBounds the static fee window is empty, negative or inverted
	ErrInvalidFeeBounds = errors.New("invalid fee bounds")
)

// Conflict errors. Existing state is left untouched.
var (
	// ErrRequestNotFound unknown request id
	ErrRequestNotFound = errors.New("request not found")
	// ErrAlreadyFulfilled the request or attestation was already fulfilled
	ErrAlreadyFulfilled = errors.New("already fulfilled")
	// ErrAlreadyProcessed the request already left the pending state
	ErrAlreadyProcessed = errors.New("request already processed")
	// ErrDuplicateRequest an attestation record already exists for the request
	ErrDuplicateRequest = errors.New("duplicate attestation request")
	// ErrCertificateExists a certificate was already minted for the request
	ErrCertificateExists = errors.New("certificate already exists")
)

// Temporal errors
var (
	// ErrRequestExpired the request passed its timeout
	ErrRequestExpired = errors.New("request expired")
	// ErrNotYetExpired the request timeout has not elapsed
	ErrNotYetExpired = errors.New("request not yet expired")
	// ErrStalePrice the price quote is older than the staleness window
	ErrStalePrice = errors.New("stale price")
	// ErrInvalidPrice the price quote is zero or negative
	ErrInvalidPrice = errors.New("invalid price")
)

// Authorization and external-dependency errors
var (
	// ErrUnauthorized the caller lacks the required capability
	ErrUnauthorized = errors.New("unauthorized")
	// ErrFeeTransferFailed the ledger fee transfer failed, the submission is aborted
	ErrFeeTransferFailed = errors.New("fee transfer failed")
	// ErrUnknownRequest no attestation record exists for the request
	ErrUnknownRequest = errors.New("unknown attestation request")
	// ErrEmptyProof the fulfillment proof is empty
	ErrEmptyProof = errors.New("empty proof")
	// ErrAttestationMismatch the attestation id does not match the one stored on the request
	ErrAttestationMismatch = errors.New("attestation mismatch")
	// ErrInvalidAttestation the relayer does not report the attestation as valid
	ErrInvalidAttestation = errors.New("invalid attestation")
	// ErrInvalidMetadata the certificate metadata is incomplete
	ErrInvalidMetadata = errors.New("invalid certificate metadata")
)

// ErrBusy a mutation on the same registry is in flight; the call is rejected,
// not queued
var ErrBusy = errors.New("registry busy")

// ErrNotFound generic router lookup miss
var ErrNotFound = errors.New("not found")

// ChainError tags a propagated failure with the originating chain
type ChainError struct {
	Chain domain.Chain
	Err   error
}

// Error satisfies the error interface for ChainError
func (e *ChainError) Error() string {
	return fmt.Sprintf("chain %s: %v", e.Chain, e.Err)
}

// Unwrap exposes the wrapped error to errors.Is/As
func (e *ChainError) Unwrap() error {
	return e.Err
}

func chainErr(chain domain.Chain, err error) error {
	if err == nil {
		return nil
	}
	return &ChainError{Chain: chain, Err: err}
}
