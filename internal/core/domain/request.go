package domain

import (
	"math/big"
	"time"
)

// RequestStatus is the lifecycle state of a verification request
type RequestStatus string

// Verification request statuses. Pending is the only non-terminal state.
const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusVerified RequestStatus = "verified"
	RequestStatusFailed   RequestStatus = "failed"
	RequestStatusExpired  RequestStatus = "expired"
)

// Terminal returns true for every status a request can never leave
func (s RequestStatus) Terminal() bool {
	return s != RequestStatusPending
}

// VerificationRequest holds a content verification request and its lifecycle
// state. OutputHash is non-empty iff the status is verified; CertificateIssued
// implies verified; a request that left pending never returns to it.
type VerificationRequest struct {
	RequestID         string
	Chain             Chain
	Requester         string
	Prompt            string
	Model             string
	CreatedAt         time.Time
	Status            RequestStatus
	OutputHash        string
	AttestationID     string
	FeePaid           *big.Int
	CertificateIssued bool
}
