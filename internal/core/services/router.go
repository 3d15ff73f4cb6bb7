package services

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/log"
)

// ChainBackend bundles one chain's protocol instantiation
type ChainBackend struct {
	Chain    domain.Chain
	Registry ports.RegistryService
	Relayer  ports.RelayerService
	Issuer   ports.IssuerService
	Ledger   ports.LedgerClient
}

// router dispatches protocol calls to per-chain backends. It owns no protocol
// state beyond the default chain selector.
type router struct {
	backends     map[domain.Chain]*ChainBackend
	order        []domain.Chain
	defaultChain domain.Chain
}

// NewRouter returns a multichain router. The backend order is the fixed probe
// and merge order for cross-chain operations.
func NewRouter(backends []*ChainBackend, defaultChain domain.Chain) ports.RouterService {
	m := make(map[domain.Chain]*ChainBackend, len(backends))
	order := make([]domain.Chain, 0, len(backends))
	for _, b := range backends {
		m[b.Chain] = b
		order = append(order, b.Chain)
	}
	return &router{backends: m, order: order, defaultChain: defaultChain}
}

func (r *router) resolve(chain *domain.Chain) (*ChainBackend, error) {
	selected := r.defaultChain
	if chain != nil {
		selected = *chain
	}
	b, ok := r.backends[selected]
	if !ok {
		return nil, domain.ErrUnsupportedChain
	}
	return b, nil
}

// SubmitVerification routes a submission to the selected chain's registry
func (r *router) SubmitVerification(ctx context.Context, requester, prompt, model string, fee *big.Int, chain *domain.Chain, now time.Time) (string, domain.Chain, error) {
	b, err := r.resolve(chain)
	if err != nil {
		return "", "", err
	}
	requestID, err := b.Registry.Submit(ctx, requester, prompt, model, fee, now)
	return requestID, b.Chain, chainErr(b.Chain, err)
}

// SubmitVerificationFor routes a caller-pays submission to the selected chain
func (r *router) SubmitVerificationFor(ctx context.Context, payer, requester, prompt, model string, fee *big.Int, chain *domain.Chain, now time.Time) (string, domain.Chain, error) {
	b, err := r.resolve(chain)
	if err != nil {
		return "", "", err
	}
	requestID, err := b.Registry.SubmitFor(ctx, payer, requester, prompt, model, fee, now)
	return requestID, b.Chain, chainErr(b.Chain, err)
}

// Fulfill routes a fulfillment to the selected chain's registry
func (r *router) Fulfill(ctx context.Context, requestID, output, attestationID, proof, oracleAccount string, chain *domain.Chain, now time.Time) error {
	b, err := r.resolve(chain)
	if err != nil {
		return err
	}
	return chainErr(b.Chain, b.Registry.Fulfill(ctx, requestID, output, attestationID, proof, oracleAccount, now))
}

// FulfillAttestation routes an oracle verdict to the selected chain's relayer
func (r *router) FulfillAttestation(ctx context.Context, requestID, result, proof, oracleAccount string, chain *domain.Chain, now time.Time) error {
	b, err := r.resolve(chain)
	if err != nil {
		return err
	}
	return chainErr(b.Chain, b.Relayer.FulfillAttestation(ctx, oracleAccount, requestID, result, proof, now))
}

// MarkFailed routes a failure mark to the selected chain's registry
func (r *router) MarkFailed(ctx context.Context, requestID, reason, oracleAccount string, chain *domain.Chain, now time.Time) error {
	b, err := r.resolve(chain)
	if err != nil {
		return err
	}
	return chainErr(b.Chain, b.Registry.MarkFailed(ctx, requestID, reason, oracleAccount, now))
}

// Expire routes an expiry to the selected chain's registry
func (r *router) Expire(ctx context.Context, requestID string, chain *domain.Chain, now time.Time) error {
	b, err := r.resolve(chain)
	if err != nil {
		return err
	}
	return chainErr(b.Chain, b.Registry.Expire(ctx, requestID, now))
}

// VerifyOutput routes an output re-verification to the selected chain
func (r *router) VerifyOutput(ctx context.Context, requestID, output string, chain *domain.Chain) (bool, error) {
	b, err := r.resolve(chain)
	if err != nil {
		return false, err
	}
	ok, err := b.Registry.VerifyOutput(ctx, requestID, output)
	return ok, chainErr(b.Chain, err)
}

// UpdateStaticFeeBounds routes a fee window change to the selected chain
func (r *router) UpdateStaticFeeBounds(ctx context.Context, caller string, min, max *big.Int, chain *domain.Chain) error {
	b, err := r.resolve(chain)
	if err != nil {
		return err
	}
	return chainErr(b.Chain, b.Registry.UpdateStaticFeeBounds(ctx, caller, min, max))
}

// GetRequest fetches a request from the selected chain, probing every chain
// in order when no selector is given.
func (r *router) GetRequest(ctx context.Context, requestID string, chain *domain.Chain) (*domain.VerificationRequest, domain.Chain, error) {
	if chain != nil {
		b, err := r.resolve(chain)
		if err != nil {
			return nil, "", err
		}
		req, err := b.Registry.Get(ctx, requestID)
		return req, b.Chain, chainErr(b.Chain, err)
	}
	for _, c := range r.order {
		req, err := r.backends[c].Registry.Get(ctx, requestID)
		if err == nil {
			return req, c, nil
		}
	}
	return nil, "", ErrNotFound
}

// GetCertificate fetches a certificate. Without an explicit selector the
// chain is first inferred from the token id prefix; if inference is
// inconclusive every chain is probed in fixed order.
func (r *router) GetCertificate(ctx context.Context, tokenID string, chain *domain.Chain) (*domain.Certificate, domain.Chain, error) {
	if chain != nil {
		b, err := r.resolve(chain)
		if err != nil {
			return nil, "", err
		}
		cert, err := b.Issuer.Get(ctx, tokenID)
		return cert, b.Chain, chainErr(b.Chain, err)
	}

	if inferred, found := lo.Find(r.order, func(c domain.Chain) bool {
		return strings.HasPrefix(tokenID, c.TokenIDPrefix())
	}); found {
		cert, err := r.backends[inferred].Issuer.Get(ctx, tokenID)
		if err == nil {
			return cert, inferred, nil
		}
		// Fall through to the probe: a foreign system may have issued a
		// colliding prefix.
		log.Debug(ctx, "token prefix inference missed", "tokenID", tokenID, "chain", inferred)
	}

	for _, c := range r.order {
		cert, err := r.backends[c].Issuer.Get(ctx, tokenID)
		if err == nil {
			return cert, c, nil
		}
	}
	return nil, "", ErrNotFound
}

// UserCertificates lists an owner's certificates. Without a selector every
// chain is queried concurrently and results are merged in the fixed chain
// order before the page window is sliced, keeping pagination stable.
func (r *router) UserCertificates(ctx context.Context, owner string, chain *domain.Chain, filter *pagination.Filter) (*domain.CertificatePage, error) {
	chains := r.order
	if chain != nil {
		if _, err := r.resolve(chain); err != nil {
			return nil, err
		}
		chains = []domain.Chain{*chain}
	}

	results := make(map[domain.Chain][]domain.Certificate, len(chains))
	var degraded []domain.Chain
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chains {
		c := c
		g.Go(func() error {
			certs, err := r.backends[c].Issuer.CertificatesOf(gctx, owner)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error(ctx, "listing certificates", "err", err, "chain", c, "owner", owner)
				degraded = append(degraded, c)
				return nil
			}
			results[c] = certs
			return nil
		})
	}
	_ = g.Wait()

	page := &domain.CertificatePage{PerChain: make(map[domain.Chain]int, len(chains))}
	var merged []domain.Certificate
	for _, c := range chains {
		certs := results[c]
		page.PerChain[c] = len(certs)
		merged = append(merged, certs...)
	}
	page.Total = len(merged)
	page.Certificates = slicePage(merged, filter)
	page.Degraded = orderedDegraded(r.order, degraded)
	return page, nil
}

// Stats aggregates per-chain statistics concurrently. A failing chain
// contributes a zeroed entry and a Degraded tag, never an aborted call.
func (r *router) Stats(ctx context.Context) (*domain.RouterStats, error) {
	stats := make(map[domain.Chain]*domain.ChainStats, len(r.order))
	var degraded []domain.Chain
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.order {
		c := c
		b := r.backends[c]
		g.Go(func() error {
			s, err := b.Registry.Stats(gctx)
			if err == nil {
				s.CertificatesIssued, err = b.Issuer.Count(gctx)
			}
			if err == nil {
				s.PendingAttestations, err = b.Relayer.PendingCount(gctx)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error(ctx, "aggregating chain stats", "err", err, "chain", c)
				degraded = append(degraded, c)
				stats[c] = &domain.ChainStats{Chain: c, FeesCollected: big.NewInt(0)}
				return nil
			}
			stats[c] = s
			return nil
		})
	}
	_ = g.Wait()

	out := &domain.RouterStats{Degraded: orderedDegraded(r.order, degraded)}
	for _, c := range r.order {
		out.Chains = append(out.Chains, *stats[c])
	}
	return out, nil
}

// Health probes every chain's ledger and oracle concurrently
func (r *router) Health(ctx context.Context) (*domain.HealthReport, error) {
	health := make(map[domain.Chain]domain.ChainHealth, len(r.order))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.order {
		c := c
		b := r.backends[c]
		g.Go(func() error {
			h := domain.ChainHealth{Chain: c}
			h.Ledger = b.Ledger.Ping(gctx) == nil
			h.Oracle = b.Relayer.Ping(gctx) == nil
			mu.Lock()
			health[c] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := &domain.HealthReport{Healthy: true}
	for _, c := range r.order {
		h := health[c]
		report.Chains = append(report.Chains, h)
		if !h.Ledger || !h.Oracle {
			report.Healthy = false
			report.Degraded = append(report.Degraded, c)
		}
	}
	return report, nil
}

// Balance returns the ledger balance of an account on the selected chain
func (r *router) Balance(ctx context.Context, account string, chain *domain.Chain) (*big.Int, domain.Chain, error) {
	b, err := r.resolve(chain)
	if err != nil {
		return nil, "", err
	}
	balance, err := b.Ledger.BalanceAt(ctx, account)
	return balance, b.Chain, chainErr(b.Chain, err)
}

func slicePage(certs []domain.Certificate, filter *pagination.Filter) []domain.Certificate {
	if filter == nil {
		return certs
	}
	offset := int(filter.GetOffset())
	if offset >= len(certs) {
		return nil
	}
	end := offset + int(filter.GetLimit())
	if end > len(certs) {
		end = len(certs)
	}
	return certs[offset:end]
}

// orderedDegraded reports degraded chains in the fixed chain order
func orderedDegraded(order, degraded []domain.Chain) []domain.Chain {
	if len(degraded) == 0 {
		return nil
	}
	return lo.Filter(order, func(c domain.Chain, _ int) bool {
		return lo.Contains(degraded, c)
	})
}
