package domain

import "time"

// AttestationRecord tracks one in-flight or fulfilled oracle attestation.
// The record is immutable once Fulfilled is true.
type AttestationRecord struct {
	RequestID     string
	Chain         Chain
	Requester     string
	Payload       []byte
	RequestedAt   time.Time
	Fulfilled     bool
	AttestationID string
	Result        string
	ProofHash     string
}

// OracleParticipant carries per-oracle-account activity counters. Created and
// updated by admin operations and by fulfillment/failure events attributable
// to that oracle.
type OracleParticipant struct {
	Account        string
	Chain          Chain
	IsActive       bool
	SuccessCount   int64
	FailureCount   int64
	LastActivityAt time.Time
}
