package repositories

import (
	"context"
	"sync"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

type certificatesInMemory struct {
	mu        sync.Mutex
	byToken   map[requestKey]domain.Certificate
	byRequest map[requestKey]string
	order     map[domain.Chain][]string
	sequences map[domain.Chain]uint64
}

// NewCertificatesInMemory returns a CertificateRepository implemented in
// memory convenient for testing
func NewCertificatesInMemory() *certificatesInMemory {
	return &certificatesInMemory{
		byToken:   make(map[requestKey]domain.Certificate),
		byRequest: make(map[requestKey]string),
		order:     make(map[domain.Chain][]string),
		sequences: make(map[domain.Chain]uint64),
	}
}

func (c *certificatesInMemory) Save(_ context.Context, cert *domain.Certificate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reqKey := requestKey{cert.Chain, cert.RequestID}
	if _, found := c.byRequest[reqKey]; found {
		return ErrCertificateAlreadyExists
	}
	tokenKey := requestKey{cert.Chain, cert.TokenID}
	if _, found := c.byToken[tokenKey]; found {
		return ErrCertificateAlreadyExists
	}
	c.byToken[tokenKey] = *cert
	c.byRequest[reqKey] = cert.TokenID
	c.order[cert.Chain] = append(c.order[cert.Chain], cert.TokenID)
	return nil
}

func (c *certificatesInMemory) GetByTokenID(_ context.Context, chain domain.Chain, tokenID string) (*domain.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cert, found := c.byToken[requestKey{chain, tokenID}]; found {
		return &cert, nil
	}
	return nil, ErrCertificateDoesNotExist
}

func (c *certificatesInMemory) GetByRequestID(_ context.Context, chain domain.Chain, requestID string) (*domain.Certificate, error) {
	c.mu.Lock()
	tokenID, found := c.byRequest[requestKey{chain, requestID}]
	c.mu.Unlock()
	if !found {
		return nil, ErrCertificateDoesNotExist
	}
	return c.GetByTokenID(context.Background(), chain, tokenID)
}

func (c *certificatesInMemory) TokensByOwner(_ context.Context, chain domain.Chain, owner string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, tokenID := range c.order[chain] {
		if cert := c.byToken[requestKey{chain, tokenID}]; cert.Owner == owner {
			out = append(out, tokenID)
		}
	}
	return out, nil
}

func (c *certificatesInMemory) TokensByModel(_ context.Context, chain domain.Chain, model string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, tokenID := range c.order[chain] {
		if cert := c.byToken[requestKey{chain, tokenID}]; cert.Model == model {
			out = append(out, tokenID)
		}
	}
	return out, nil
}

func (c *certificatesInMemory) CertificatesByOwner(_ context.Context, chain domain.Chain, owner string) ([]domain.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Certificate
	for _, tokenID := range c.order[chain] {
		if cert := c.byToken[requestKey{chain, tokenID}]; cert.Owner == owner {
			out = append(out, cert)
		}
	}
	return out, nil
}

func (c *certificatesInMemory) NextTokenSequence(_ context.Context, chain domain.Chain) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequences[chain]++
	return c.sequences[chain], nil
}

func (c *certificatesInMemory) Count(_ context.Context, chain domain.Chain) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.order[chain])), nil
}
