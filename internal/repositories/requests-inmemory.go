package repositories

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
)

type requestKey struct {
	chain domain.Chain
	id    string
}

type requestsInMemory struct {
	mu       sync.Mutex
	requests map[requestKey]domain.VerificationRequest
	nonces   map[domain.Chain]uint64
}

// NewRequestsInMemory returns a RequestRepository implemented in memory
// convenient for testing
func NewRequestsInMemory() *requestsInMemory {
	return &requestsInMemory{
		requests: make(map[requestKey]domain.VerificationRequest),
		nonces:   make(map[domain.Chain]uint64),
	}
}

func (r *requestsInMemory) Save(_ context.Context, req *domain.VerificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := requestKey{req.Chain, req.RequestID}
	if _, found := r.requests[key]; found {
		return ErrRequestAlreadyExists
	}
	r.requests[key] = *req
	return nil
}

func (r *requestsInMemory) GetByID(_ context.Context, chain domain.Chain, requestID string) (*domain.VerificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, found := r.requests[requestKey{chain, requestID}]; found {
		return &req, nil
	}
	return nil, ErrRequestDoesNotExist
}

func (r *requestsInMemory) Update(_ context.Context, req *domain.VerificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := requestKey{req.Chain, req.RequestID}
	if _, found := r.requests[key]; !found {
		return ErrRequestDoesNotExist
	}
	r.requests[key] = *req
	return nil
}

func (r *requestsInMemory) GetByRequester(_ context.Context, chain domain.Chain, requester string, filter *pagination.Filter) ([]domain.VerificationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VerificationRequest
	for key, req := range r.requests {
		if key.chain == chain && req.Requester == requester {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

func (r *requestsInMemory) NextNonce(_ context.Context, chain domain.Chain) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonces[chain]++
	return r.nonces[chain], nil
}

func (r *requestsInMemory) Stats(_ context.Context, chain domain.Chain) (*domain.ChainStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.ChainStats{Chain: chain, FeesCollected: big.NewInt(0)}
	for key, req := range r.requests {
		if key.chain != chain {
			continue
		}
		stats.TotalRequests++
		switch req.Status {
		case domain.RequestStatusPending:
			stats.PendingRequests++
		case domain.RequestStatusVerified:
			stats.VerifiedRequests++
		case domain.RequestStatusFailed:
			stats.FailedRequests++
		case domain.RequestStatusExpired:
			stats.ExpiredRequests++
		}
		if req.FeePaid != nil {
			stats.FeesCollected.Add(stats.FeesCollected, req.FeePaid)
		}
	}
	return stats, nil
}

func paginate[T any](items []T, filter *pagination.Filter) []T {
	if filter == nil {
		return items
	}
	offset := int(filter.GetOffset())
	if offset >= len(items) {
		return nil
	}
	end := offset + int(filter.GetLimit())
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type activityKey struct {
	chain     domain.Chain
	requester string
}

type activityInMemory struct {
	mu         sync.Mutex
	activities map[activityKey]domain.UserActivity
}

// NewActivityInMemory returns an ActivityRepository implemented in memory
// convenient for testing
func NewActivityInMemory() *activityInMemory {
	return &activityInMemory{activities: make(map[activityKey]domain.UserActivity)}
}

func (a *activityInMemory) Get(_ context.Context, chain domain.Chain, requester string) (*domain.UserActivity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if act, found := a.activities[activityKey{chain, requester}]; found {
		cp := act
		cp.DailyCounts = make(map[int64]int, len(act.DailyCounts))
		for k, v := range act.DailyCounts {
			cp.DailyCounts[k] = v
		}
		return &cp, nil
	}
	return nil, nil
}

func (a *activityInMemory) Save(_ context.Context, act *domain.UserActivity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activities[activityKey{act.Chain, act.Requester}] = *act
	return nil
}

type participantsInMemory struct {
	mu           sync.Mutex
	participants map[activityKey]domain.OracleParticipant
}

// NewParticipantsInMemory returns a ParticipantRepository implemented in
// memory convenient for testing
func NewParticipantsInMemory() *participantsInMemory {
	return &participantsInMemory{participants: make(map[activityKey]domain.OracleParticipant)}
}

func (p *participantsInMemory) Get(_ context.Context, chain domain.Chain, account string) (*domain.OracleParticipant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if op, found := p.participants[activityKey{chain, account}]; found {
		return &op, nil
	}
	return nil, ErrParticipantDoesNotExist
}

func (p *participantsInMemory) Save(_ context.Context, participant *domain.OracleParticipant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.participants[activityKey{participant.Chain, participant.Account}] = *participant
	return nil
}

func (p *participantsInMemory) Touch(_ context.Context, chain domain.Chain, account string, success bool, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := activityKey{chain, account}
	op, found := p.participants[key]
	if !found {
		op = domain.OracleParticipant{Account: account, Chain: chain, IsActive: true}
	}
	if success {
		op.SuccessCount++
	} else {
		op.FailureCount++
	}
	op.LastActivityAt = at
	p.participants[key] = op
	return nil
}
