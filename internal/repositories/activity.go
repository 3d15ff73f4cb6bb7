package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/db"
)

// activity repository
type activity struct {
	conn db.Storage
}

// NewActivity creates a new user activity repository
func NewActivity(conn db.Storage) ports.ActivityRepository {
	return &activity{conn}
}

// Get returns the activity counters for an account, nil if none recorded yet
func (a *activity) Get(ctx context.Context, chain domain.Chain, requester string) (*domain.UserActivity, error) {
	const query = `
SELECT requester, chain, last_request_at, daily_counts, total_requests
FROM user_activity
WHERE chain = $1 AND requester = $2;`
	var act domain.UserActivity
	var counts pgtype.JSONB
	err := a.conn.Pgx.QueryRow(ctx, query, chain, requester).Scan(
		&act.Requester,
		&act.Chain,
		&act.LastRequestAt,
		&counts,
		&act.TotalRequests,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	dailyCounts, err := decodeDailyCounts(counts.Bytes)
	if err != nil {
		return nil, err
	}
	act.DailyCounts = dailyCounts
	return &act, nil
}

// Save upserts the activity counters for an account
func (a *activity) Save(ctx context.Context, act *domain.UserActivity) error {
	const query = `
INSERT
INTO user_activity (requester, chain, last_request_at, daily_counts, total_requests)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (chain, requester) DO UPDATE
SET last_request_at = $3, daily_counts = $4, total_requests = $5;`
	counts, err := encodeDailyCounts(act.DailyCounts)
	if err != nil {
		return err
	}
	_, err = a.conn.Pgx.Exec(ctx, query, act.Requester, act.Chain, act.LastRequestAt, counts, act.TotalRequests)
	if err != nil {
		return fmt.Errorf("could not save user activity: %w", err)
	}
	return nil
}

// jsonb object keys must be strings, day indexes are persisted as decimal strings
func encodeDailyCounts(counts map[int64]int) (pgtype.JSONB, error) {
	m := make(map[string]int, len(counts))
	for day, c := range counts {
		m[strconv.FormatInt(day, 10)] = c
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return pgtype.JSONB{}, err
	}
	return pgtype.JSONB{Bytes: raw, Status: pgtype.Present}, nil
}

func decodeDailyCounts(raw []byte) (map[int64]int, error) {
	if len(raw) == 0 {
		return map[int64]int{}, nil
	}
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(m))
	for day, c := range m {
		idx, err := strconv.ParseInt(day, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt daily counts key %q: %w", day, err)
		}
		counts[idx] = c
	}
	return counts, nil
}
