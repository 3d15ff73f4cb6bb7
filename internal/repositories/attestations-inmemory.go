package repositories

import (
	"context"
	"sync"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

type attestationsInMemory struct {
	mu        sync.Mutex
	byRequest map[requestKey]domain.AttestationRecord
	sequences map[domain.Chain]uint64
}

// NewAttestationsInMemory returns an AttestationRepository implemented in
// memory convenient for testing
func NewAttestationsInMemory() *attestationsInMemory {
	return &attestationsInMemory{
		byRequest: make(map[requestKey]domain.AttestationRecord),
		sequences: make(map[domain.Chain]uint64),
	}
}

func (a *attestationsInMemory) Save(_ context.Context, rec *domain.AttestationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := requestKey{rec.Chain, rec.RequestID}
	if _, found := a.byRequest[key]; found {
		return ErrAttestationAlreadyExists
	}
	a.byRequest[key] = *rec
	return nil
}

func (a *attestationsInMemory) GetByRequestID(_ context.Context, chain domain.Chain, requestID string) (*domain.AttestationRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, found := a.byRequest[requestKey{chain, requestID}]; found {
		return &rec, nil
	}
	return nil, ErrAttestationDoesNotExist
}

func (a *attestationsInMemory) GetByAttestationID(_ context.Context, chain domain.Chain, attestationID string) (*domain.AttestationRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, rec := range a.byRequest {
		if key.chain == chain && rec.AttestationID == attestationID {
			return &rec, nil
		}
	}
	return nil, ErrAttestationDoesNotExist
}

func (a *attestationsInMemory) Update(_ context.Context, rec *domain.AttestationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := requestKey{rec.Chain, rec.RequestID}
	if _, found := a.byRequest[key]; !found {
		return ErrAttestationDoesNotExist
	}
	a.byRequest[key] = *rec
	return nil
}

func (a *attestationsInMemory) Delete(_ context.Context, chain domain.Chain, requestID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := requestKey{chain, requestID}
	if _, found := a.byRequest[key]; !found {
		return ErrAttestationDoesNotExist
	}
	delete(a.byRequest, key)
	return nil
}

func (a *attestationsInMemory) NextSequence(_ context.Context, chain domain.Chain) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sequences[chain]++
	return a.sequences[chain], nil
}

func (a *attestationsInMemory) CountPending(_ context.Context, chain domain.Chain) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for key, rec := range a.byRequest {
		if key.chain == chain && !rec.Fulfilled {
			n++
		}
	}
	return n, nil
}
