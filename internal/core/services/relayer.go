package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"

	"github.com/verichain-labs/verification-node/internal/cache"
	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/event"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/log"
	"github.com/verichain-labs/verification-node/internal/policy"
	"github.com/verichain-labs/verification-node/internal/pubsub"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

const (
	priceCacheKeyPrefix = "price:"
	priceCacheTTL       = domain.PriceStalenessWindow
	priceFetchRetries   = 3
)

// RelayerConfig holds the per-chain relayer settings
type RelayerConfig struct {
	Owner          string
	AssetID        string
	NativeDecimals uint32
}

// cachedQuote is the redis representation of a price quote. apd decimals are
// stored as strings to keep the cache codec independent of the decimal type.
type cachedQuote struct {
	AssetID string    `json:"assetID"`
	Price   string    `json:"price"`
	AsOf    time.Time `json:"asOf"`
}

type relayer struct {
	chain        domain.Chain
	attestations ports.AttestationRepository
	participants ports.ParticipantRepository
	forwarder    ports.AttestationForwarder
	priceFeed    ports.PriceFeed
	authorizer   ports.Authorizer
	publisher    pubsub.Publisher
	cache        cache.Cache
	cfg          RelayerConfig
}

// NewRelayer returns a new oracle relayer service for one chain
func NewRelayer(
	chain domain.Chain,
	attestations ports.AttestationRepository,
	participants ports.ParticipantRepository,
	forwarder ports.AttestationForwarder,
	priceFeed ports.PriceFeed,
	authorizer ports.Authorizer,
	publisher pubsub.Publisher,
	c cache.Cache,
	cfg RelayerConfig,
) ports.RelayerService {
	return &relayer{
		chain:        chain,
		attestations: attestations,
		participants: participants,
		forwarder:    forwarder,
		priceFeed:    priceFeed,
		authorizer:   authorizer,
		publisher:    publisher,
		cache:        c,
		cfg:          cfg,
	}
}

// RequestAttestation stores a new attestation record and forwards the payload
// to the external oracle. The derived attestation id is deterministic given
// the request id, caller, payload, timestamp and the chain sequence counter.
func (r *relayer) RequestAttestation(ctx context.Context, caller, requestID string, payload []byte, now time.Time) (string, error) {
	if !r.authorizer.Has(ctx, ports.CapabilityRelay, caller) {
		return "", ErrUnauthorized
	}
	if _, err := r.attestations.GetByRequestID(ctx, r.chain, requestID); err == nil {
		return "", ErrDuplicateRequest
	} else if !errors.Is(err, repositories.ErrAttestationDoesNotExist) {
		return "", err
	}

	seq, err := r.attestations.NextSequence(ctx, r.chain)
	if err != nil {
		return "", err
	}
	attestationID := deriveAttestationID(requestID, caller, payload, now, seq)

	if err := r.forwarder.Forward(ctx, requestID, payload); err != nil {
		return "", fmt.Errorf("could not forward attestation to oracle: %w", err)
	}

	rec := &domain.AttestationRecord{
		RequestID:     requestID,
		Chain:         r.chain,
		Requester:     caller,
		Payload:       payload,
		RequestedAt:   now,
		Fulfilled:     false,
		AttestationID: attestationID,
	}
	if err := r.attestations.Save(ctx, rec); err != nil {
		if errors.Is(err, repositories.ErrAttestationAlreadyExists) {
			return "", ErrDuplicateRequest
		}
		return "", err
	}

	ev := event.AttestationRequested{
		ID:            uuid.New(),
		RequestID:     requestID,
		AttestationID: attestationID,
		Chain:         string(r.chain),
	}
	if err := r.publisher.Publish(ctx, event.AttestationRequestedEvent, &ev); err != nil {
		log.Error(ctx, "publishing attestation requested event", "err", err, "requestID", requestID)
	}

	return attestationID, nil
}

// FulfillAttestation marks an attestation fulfilled exactly once
func (r *relayer) FulfillAttestation(ctx context.Context, caller, requestID, result, proof string, now time.Time) error {
	if !r.authorizer.Has(ctx, ports.CapabilityRelay, caller) {
		return ErrUnauthorized
	}
	rec, err := r.attestations.GetByRequestID(ctx, r.chain, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttestationDoesNotExist) {
			return ErrUnknownRequest
		}
		return err
	}
	if rec.Fulfilled {
		return ErrAlreadyFulfilled
	}
	if proof == "" {
		return ErrEmptyProof
	}

	rec.Fulfilled = true
	rec.Result = result
	rec.ProofHash = policy.DeriveOutputHash(proof)
	if err := r.attestations.Update(ctx, rec); err != nil {
		return err
	}
	if err := r.participants.Touch(ctx, r.chain, caller, true, now); err != nil {
		log.Error(ctx, "updating oracle participant counters", "err", err, "account", caller)
	}
	return nil
}

// CancelAttestation discards an unfulfilled attestation record. Fulfilled
// attestations are immutable and cannot be cancelled.
func (r *relayer) CancelAttestation(ctx context.Context, caller, requestID string) error {
	if !r.authorizer.Has(ctx, ports.CapabilityRelay, caller) {
		return ErrUnauthorized
	}
	rec, err := r.attestations.GetByRequestID(ctx, r.chain, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttestationDoesNotExist) {
			return ErrUnknownRequest
		}
		return err
	}
	if rec.Fulfilled {
		return ErrAlreadyFulfilled
	}
	return r.attestations.Delete(ctx, r.chain, requestID)
}

// GetPrice returns the latest quote for an asset, serving from cache when the
// feed was queried recently.
func (r *relayer) GetPrice(ctx context.Context, assetID string) (*domain.PriceQuote, error) {
	key := priceCacheKeyPrefix + assetID
	var cached cachedQuote
	if found := r.cache.Get(ctx, key, &cached); found {
		price, _, err := apd.NewFromString(cached.Price)
		if err == nil {
			return &domain.PriceQuote{AssetID: cached.AssetID, Price: price, AsOf: cached.AsOf}, nil
		}
		log.Warn(ctx, "corrupt cached price, refetching", "asset", assetID, "err", err)
	}

	var quote *domain.PriceQuote
	fetch := func() error {
		var err error
		quote, err = r.priceFeed.GetPrice(ctx, assetID)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), priceFetchRetries)
	if err := backoff.Retry(fetch, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("could not fetch price for %s: %w", assetID, err)
	}

	toCache := cachedQuote{AssetID: quote.AssetID, Price: quote.Price.String(), AsOf: quote.AsOf}
	if err := r.cache.Set(ctx, key, toCache, priceCacheTTL); err != nil {
		log.Warn(ctx, "caching price quote", "err", err, "asset", assetID)
	}
	return quote, nil
}

// ConvertFee converts a USD-cents fee into native token units at the latest
// price. Callers fall back to a static fee on ErrStalePrice/ErrInvalidPrice.
func (r *relayer) ConvertFee(ctx context.Context, usdCents int64, now time.Time) (*big.Int, error) {
	quote, err := r.GetPrice(ctx, r.cfg.AssetID)
	if err != nil {
		return nil, err
	}
	if quote.Stale(now) {
		return nil, ErrStalePrice
	}
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}

	// native = (usdCents / 100) / price * 10^decimals
	dctx := apd.BaseContext.WithPrecision(50)
	usd := apd.New(usdCents, -2)
	tokens := new(apd.Decimal)
	if _, err := dctx.Quo(tokens, usd, quote.Price); err != nil {
		return nil, fmt.Errorf("fee conversion: %w", err)
	}
	scale := new(apd.Decimal)
	if _, err := dctx.Pow(scale, apd.New(10, 0), apd.New(int64(r.cfg.NativeDecimals), 0)); err != nil {
		return nil, fmt.Errorf("fee conversion: %w", err)
	}
	units := new(apd.Decimal)
	if _, err := dctx.Mul(units, tokens, scale); err != nil {
		return nil, fmt.Errorf("fee conversion: %w", err)
	}
	floored := new(apd.Decimal)
	if _, err := dctx.Floor(floored, units); err != nil {
		return nil, fmt.Errorf("fee conversion: %w", err)
	}
	out := new(big.Int)
	if _, ok := out.SetString(floored.Text('f'), 10); !ok {
		return nil, fmt.Errorf("fee conversion: cannot represent %s as integer", floored.Text('f'))
	}
	return out, nil
}

// IsAttestationValid returns true iff a record with that id exists and is
// fulfilled
func (r *relayer) IsAttestationValid(ctx context.Context, attestationID string) (bool, error) {
	rec, err := r.attestations.GetByAttestationID(ctx, r.chain, attestationID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttestationDoesNotExist) {
			return false, nil
		}
		return false, err
	}
	return rec.Fulfilled, nil
}

// PendingCount returns the number of in-flight attestations
func (r *relayer) PendingCount(ctx context.Context) (int64, error) {
	return r.attestations.CountPending(ctx, r.chain)
}

// Ping probes the external oracle
func (r *relayer) Ping(ctx context.Context) error {
	return r.forwarder.Ping(ctx)
}

func deriveAttestationID(requestID, requester string, payload []byte, requestedAt time.Time, sequence uint64) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s|%s|%x|%d|%d", requestID, requester, payload, requestedAt.Unix(), sequence)
	return "att-" + hex.EncodeToString(h.Sum(nil))[:32]
}
