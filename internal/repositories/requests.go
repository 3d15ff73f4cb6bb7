package repositories

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/db"
)

const uniqueViolationCode = "23505"

// requests repository
type requests struct {
	conn db.Storage
}

// NewRequests creates a new verification request repository
func NewRequests(conn db.Storage) ports.RequestRepository {
	return &requests{conn}
}

// Save inserts a new verification request
func (r *requests) Save(ctx context.Context, req *domain.VerificationRequest) error {
	const query = `
INSERT
INTO verification_requests (request_id, chain, requester, prompt, model, created_at, status, output_hash, attestation_id, fee_paid, certificate_issued)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`
	_, err := r.conn.Pgx.Exec(ctx, query,
		req.RequestID,
		req.Chain,
		req.Requester,
		req.Prompt,
		req.Model,
		req.CreatedAt,
		req.Status,
		req.OutputHash,
		req.AttestationID,
		feeToString(req.FeePaid),
		req.CertificateIssued,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrRequestAlreadyExists
		}
		return fmt.Errorf("could not insert verification request: %w", err)
	}
	return nil
}

// GetByID returns a verification request by its id
func (r *requests) GetByID(ctx context.Context, chain domain.Chain, requestID string) (*domain.VerificationRequest, error) {
	const query = `
SELECT request_id, chain, requester, prompt, model, created_at, status, output_hash, attestation_id, fee_paid, certificate_issued
FROM verification_requests
WHERE chain = $1 AND request_id = $2;`
	row := r.conn.Pgx.QueryRow(ctx, query, chain, requestID)
	return scanRequest(row)
}

// Update persists a lifecycle transition
func (r *requests) Update(ctx context.Context, req *domain.VerificationRequest) error {
	const query = `
UPDATE verification_requests
SET status = $3, output_hash = $4, certificate_issued = $5
WHERE chain = $1 AND request_id = $2;`
	tag, err := r.conn.Pgx.Exec(ctx, query, req.Chain, req.RequestID, req.Status, req.OutputHash, req.CertificateIssued)
	if err != nil {
		return fmt.Errorf("could not update verification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestDoesNotExist
	}
	return nil
}

// GetByRequester returns the requests submitted by an account, newest first
func (r *requests) GetByRequester(ctx context.Context, chain domain.Chain, requester string, filter *pagination.Filter) ([]domain.VerificationRequest, error) {
	const query = `
SELECT request_id, chain, requester, prompt, model, created_at, status, output_hash, attestation_id, fee_paid, certificate_issued
FROM verification_requests
WHERE chain = $1 AND requester = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4;`
	if filter == nil {
		filter = &pagination.Filter{}
	}
	rows, err := r.conn.Pgx.Query(ctx, query, chain, requester, filter.GetLimit(), filter.GetOffset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VerificationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// NextNonce increments and returns the chain request sequence
func (r *requests) NextNonce(ctx context.Context, chain domain.Chain) (uint64, error) {
	return nextSequence(ctx, r.conn.Pgx, chain, "request")
}

// Stats aggregates the chain request counters
func (r *requests) Stats(ctx context.Context, chain domain.Chain) (*domain.ChainStats, error) {
	const query = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'verified'),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COUNT(*) FILTER (WHERE status = 'expired'),
	COALESCE(SUM(fee_paid::numeric), 0)::text
FROM verification_requests
WHERE chain = $1;`
	stats := &domain.ChainStats{Chain: chain}
	var fees string
	err := r.conn.Pgx.QueryRow(ctx, query, chain).Scan(
		&stats.TotalRequests,
		&stats.PendingRequests,
		&stats.VerifiedRequests,
		&stats.FailedRequests,
		&stats.ExpiredRequests,
		&fees,
	)
	if err != nil {
		return nil, fmt.Errorf("could not aggregate request stats: %w", err)
	}
	stats.FeesCollected, _ = new(big.Int).SetString(fees, 10)
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*domain.VerificationRequest, error) {
	var req domain.VerificationRequest
	var fee string
	err := row.Scan(
		&req.RequestID,
		&req.Chain,
		&req.Requester,
		&req.Prompt,
		&req.Model,
		&req.CreatedAt,
		&req.Status,
		&req.OutputHash,
		&req.AttestationID,
		&fee,
		&req.CertificateIssued,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestDoesNotExist
		}
		return nil, err
	}
	req.FeePaid, _ = new(big.Int).SetString(fee, 10)
	return &req, nil
}

func feeToString(fee *big.Int) string {
	if fee == nil {
		return "0"
	}
	return fee.String()
}

// nextSequence bumps the named per-chain monotonic counter and returns the new
// value. Counters back request nonces, attestation sequences and token ids.
func nextSequence(ctx context.Context, conn db.Querier, chain domain.Chain, name string) (uint64, error) {
	const query = `
INSERT INTO chain_sequences (chain, name, value)
VALUES ($1, $2, 1)
ON CONFLICT (chain, name) DO UPDATE SET value = chain_sequences.value + 1
RETURNING value;`
	var value uint64
	if err := conn.QueryRow(ctx, query, chain, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("could not advance %s sequence: %w", name, err)
	}
	return value, nil
}
