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

// certificates repository. Rows are append-only: there is no update or delete
// statement in this file on purpose, certificates are soul-bound.
type certificates struct {
	conn db.Storage
}

// NewCertificates creates a new certificate repository
func NewCertificates(conn db.Storage) ports.CertificateRepository {
	return &certificates{conn}
}

// Save inserts a certificate. The unique constraint on (chain, request_id)
// guarantees at most one certificate per request.
func (c *certificates) Save(ctx context.Context, cert *domain.Certificate) error {
	const query = `
INSERT
INTO certificates (token_id, chain, owner, request_id, prompt, model, output_hash, proof_hash, issued_at, verifier)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	_, err := c.conn.Pgx.Exec(ctx, query,
		cert.TokenID,
		cert.Chain,
		cert.Owner,
		cert.RequestID,
		cert.Prompt,
		cert.Model,
		cert.OutputHash,
		cert.ProofHash,
		cert.IssuedAt,
		cert.Verifier,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrCertificateAlreadyExists
		}
		return fmt.Errorf("could not insert certificate: %w", err)
	}
	return nil
}

// GetByTokenID returns a certificate by token id
func (c *certificates) GetByTokenID(ctx context.Context, chain domain.Chain, tokenID string) (*domain.Certificate, error) {
	const query = `
SELECT token_id, chain, owner, request_id, prompt, model, output_hash, proof_hash, issued_at, verifier
FROM certificates
WHERE chain = $1 AND token_id = $2;`
	return scanCertificate(c.conn.Pgx.QueryRow(ctx, query, chain, tokenID))
}

// GetByRequestID returns the certificate bound to a request
func (c *certificates) GetByRequestID(ctx context.Context, chain domain.Chain, requestID string) (*domain.Certificate, error) {
	const query = `
SELECT token_id, chain, owner, request_id, prompt, model, output_hash, proof_hash, issued_at, verifier
FROM certificates
WHERE chain = $1 AND request_id = $2;`
	return scanCertificate(c.conn.Pgx.QueryRow(ctx, query, chain, requestID))
}

// TokensByOwner returns the owner index in insertion order
func (c *certificates) TokensByOwner(ctx context.Context, chain domain.Chain, owner string) ([]string, error) {
	const query = `
SELECT token_id FROM certificates WHERE chain = $1 AND owner = $2 ORDER BY seq ASC;`
	return c.tokenList(ctx, query, chain, owner)
}

// TokensByModel returns the model index in insertion order
func (c *certificates) TokensByModel(ctx context.Context, chain domain.Chain, model string) ([]string, error) {
	const query = `
SELECT token_id FROM certificates WHERE chain = $1 AND model = $2 ORDER BY seq ASC;`
	return c.tokenList(ctx, query, chain, model)
}

// CertificatesByOwner returns the full certificates owned by an account in
// insertion order
func (c *certificates) CertificatesByOwner(ctx context.Context, chain domain.Chain, owner string) ([]domain.Certificate, error) {
	const query = `
SELECT token_id, chain, owner, request_id, prompt, model, output_hash, proof_hash, issued_at, verifier
FROM certificates
WHERE chain = $1 AND owner = $2
ORDER BY seq ASC;`
	rows, err := c.conn.Pgx.Query(ctx, query, chain, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cert)
	}
	return out, rows.Err()
}

// NextTokenSequence increments and returns the chain token counter
func (c *certificates) NextTokenSequence(ctx context.Context, chain domain.Chain) (uint64, error) {
	return nextSequence(ctx, c.conn.Pgx, chain, "token")
}

// Count returns the number of certificates minted on the chain
func (c *certificates) Count(ctx context.Context, chain domain.Chain) (int64, error) {
	const query = `SELECT COUNT(*) FROM certificates WHERE chain = $1;`
	var n int64
	if err := c.conn.Pgx.QueryRow(ctx, query, chain).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *certificates) tokenList(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := c.conn.Pgx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tokenID string
		if err := rows.Scan(&tokenID); err != nil {
			return nil, err
		}
		out = append(out, tokenID)
	}
	return out, rows.Err()
}

func scanCertificate(row rowScanner) (*domain.Certificate, error) {
	var cert domain.Certificate
	err := row.Scan(
		&cert.TokenID,
		&cert.Chain,
		&cert.Owner,
		&cert.RequestID,
		&cert.Prompt,
		&cert.Model,
		&cert.OutputHash,
		&cert.ProofHash,
		&cert.IssuedAt,
		&cert.Verifier,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCertificateDoesNotExist
		}
		return nil, err
	}
	return &cert, nil
}
