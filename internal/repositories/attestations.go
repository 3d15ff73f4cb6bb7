package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/db"
)

// attestations repository
type attestations struct {
	conn db.Storage
}

// NewAttestations creates a new attestation record repository
func NewAttestations(conn db.Storage) ports.AttestationRepository {
	return &attestations{conn}
}

// Save inserts a new attestation record
func (a *attestations) Save(ctx context.Context, rec *domain.AttestationRecord) error {
	const query = `
INSERT
INTO attestation_records (request_id, chain, requester, payload, requested_at, fulfilled, attestation_id, result, proof_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	_, err := a.conn.Pgx.Exec(ctx, query,
		rec.RequestID,
		rec.Chain,
		rec.Requester,
		rec.Payload,
		rec.RequestedAt,
		rec.Fulfilled,
		rec.AttestationID,
		rec.Result,
		rec.ProofHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrAttestationAlreadyExists
		}
		return fmt.Errorf("could not insert attestation record: %w", err)
	}
	return nil
}

// GetByRequestID returns the attestation record bound to a request
func (a *attestations) GetByRequestID(ctx context.Context, chain domain.Chain, requestID string) (*domain.AttestationRecord, error) {
	const query = `
SELECT request_id, chain, requester, payload, requested_at, fulfilled, attestation_id, result, proof_hash
FROM attestation_records
WHERE chain = $1 AND request_id = $2;`
	return scanAttestation(a.conn.Pgx.QueryRow(ctx, query, chain, requestID))
}

// GetByAttestationID returns the attestation record by its derived id
func (a *attestations) GetByAttestationID(ctx context.Context, chain domain.Chain, attestationID string) (*domain.AttestationRecord, error) {
	const query = `
SELECT request_id, chain, requester, payload, requested_at, fulfilled, attestation_id, result, proof_hash
FROM attestation_records
WHERE chain = $1 AND attestation_id = $2;`
	return scanAttestation(a.conn.Pgx.QueryRow(ctx, query, chain, attestationID))
}

// Update persists a fulfillment
func (a *attestations) Update(ctx context.Context, rec *domain.AttestationRecord) error {
	const query = `
UPDATE attestation_records
SET fulfilled = $3, result = $4, proof_hash = $5
WHERE chain = $1 AND request_id = $2;`
	tag, err := a.conn.Pgx.Exec(ctx, query, rec.Chain, rec.RequestID, rec.Fulfilled, rec.Result, rec.ProofHash)
	if err != nil {
		return fmt.Errorf("could not update attestation record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttestationDoesNotExist
	}
	return nil
}

// Delete removes an attestation record
func (a *attestations) Delete(ctx context.Context, chain domain.Chain, requestID string) error {
	const query = `DELETE FROM attestation_records WHERE chain = $1 AND request_id = $2;`
	tag, err := a.conn.Pgx.Exec(ctx, query, chain, requestID)
	if err != nil {
		return fmt.Errorf("could not delete attestation record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttestationDoesNotExist
	}
	return nil
}

// NextSequence increments and returns the chain attestation sequence
func (a *attestations) NextSequence(ctx context.Context, chain domain.Chain) (uint64, error) {
	return nextSequence(ctx, a.conn.Pgx, chain, "attestation")
}

// CountPending returns the number of unfulfilled attestations on the chain
func (a *attestations) CountPending(ctx context.Context, chain domain.Chain) (int64, error) {
	const query = `SELECT COUNT(*) FROM attestation_records WHERE chain = $1 AND NOT fulfilled;`
	var n int64
	if err := a.conn.Pgx.QueryRow(ctx, query, chain).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanAttestation(row rowScanner) (*domain.AttestationRecord, error) {
	var rec domain.AttestationRecord
	err := row.Scan(
		&rec.RequestID,
		&rec.Chain,
		&rec.Requester,
		&rec.Payload,
		&rec.RequestedAt,
		&rec.Fulfilled,
		&rec.AttestationID,
		&rec.Result,
		&rec.ProofHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttestationDoesNotExist
		}
		return nil, err
	}
	return &rec, nil
}
