package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/db"
)

// participants repository
type participants struct {
	conn db.Storage
}

// NewParticipants creates a new oracle participant repository
func NewParticipants(conn db.Storage) ports.ParticipantRepository {
	return &participants{conn}
}

// Get returns an oracle participant
func (p *participants) Get(ctx context.Context, chain domain.Chain, account string) (*domain.OracleParticipant, error) {
	const query = `
SELECT account, chain, is_active, success_count, failure_count, last_activity_at
FROM oracle_participants
WHERE chain = $1 AND account = $2;`
	var op domain.OracleParticipant
	err := p.conn.Pgx.QueryRow(ctx, query, chain, account).Scan(
		&op.Account,
		&op.Chain,
		&op.IsActive,
		&op.SuccessCount,
		&op.FailureCount,
		&op.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipantDoesNotExist
		}
		return nil, err
	}
	return &op, nil
}

// Save upserts an oracle participant
func (p *participants) Save(ctx context.Context, participant *domain.OracleParticipant) error {
	const query = `
INSERT
INTO oracle_participants (account, chain, is_active, success_count, failure_count, last_activity_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (chain, account) DO UPDATE
SET is_active = $3, success_count = $4, failure_count = $5, last_activity_at = $6;`
	_, err := p.conn.Pgx.Exec(ctx, query,
		participant.Account,
		participant.Chain,
		participant.IsActive,
		participant.SuccessCount,
		participant.FailureCount,
		participant.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("could not save oracle participant: %w", err)
	}
	return nil
}

// Touch increments the success or failure counter for an oracle account,
// creating the participant row on first activity.
func (p *participants) Touch(ctx context.Context, chain domain.Chain, account string, success bool, at time.Time) error {
	const query = `
INSERT
INTO oracle_participants (account, chain, is_active, success_count, failure_count, last_activity_at)
VALUES ($1, $2, TRUE, $3, $4, $5)
ON CONFLICT (chain, account) DO UPDATE
SET success_count = oracle_participants.success_count + $3,
    failure_count = oracle_participants.failure_count + $4,
    last_activity_at = $5;`
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}
	_, err := p.conn.Pgx.Exec(ctx, query, account, chain, successInc, failureInc, at)
	if err != nil {
		return fmt.Errorf("could not touch oracle participant: %w", err)
	}
	return nil
}
