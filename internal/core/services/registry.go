package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/event"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/log"
	"github.com/verichain-labs/verification-node/internal/policy"
	"github.com/verichain-labs/verification-node/internal/pubsub"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

const bpsDenominator = 10000

// RegistryConfig holds the per-chain registry settings
type RegistryConfig struct {
	// ServiceAccount is charged by the backend-initiated Submit entry point
	ServiceAccount string
	// Treasury receives submission fees
	Treasury string
	// FeeUSDCents is the dynamic fee target in USD cents
	FeeUSDCents int64
	// MinFeeBPS/MaxFeeBPS bound the accepted fee around the dynamic target,
	// in basis points of the target
	MinFeeBPS int64
	MaxFeeBPS int64
	// StaticMinFee/StaticMaxFee bound the accepted fee when the price feed is
	// stale or invalid
	StaticMinFee *big.Int
	StaticMaxFee *big.Int
}

// registry is the per-chain verification request state machine. All mutations
// are serialized through mx; a mutation arriving while another is in flight
// is rejected with ErrBusy rather than queued.
type registry struct {
	chain        domain.Chain
	requests     ports.RequestRepository
	activity     ports.ActivityRepository
	participants ports.ParticipantRepository
	relayer      ports.RelayerService
	issuer       ports.IssuerService
	ledger       ports.LedgerClient
	authorizer   ports.Authorizer
	publisher    pubsub.Publisher
	cfg          RegistryConfig

	mx sync.Mutex
}

// NewRegistry returns a new verification registry service for one chain
func NewRegistry(
	chain domain.Chain,
	requests ports.RequestRepository,
	activity ports.ActivityRepository,
	participants ports.ParticipantRepository,
	relayerSvc ports.RelayerService,
	issuerSvc ports.IssuerService,
	ledger ports.LedgerClient,
	authorizer ports.Authorizer,
	publisher pubsub.Publisher,
	cfg RegistryConfig,
) ports.RegistryService {
	return &registry{
		chain:        chain,
		requests:     requests,
		activity:     activity,
		participants: participants,
		relayer:      relayerSvc,
		issuer:       issuerSvc,
		ledger:       ledger,
		authorizer:   authorizer,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// attestationPayload is what gets forwarded to the external oracle
type attestationPayload struct {
	RequestID string `json:"requestID"`
	Requester string `json:"requester"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
}

// Submit is the backend-initiated entry point: the configured service account
// pays on behalf of the requester.
func (r *registry) Submit(ctx context.Context, requester, prompt, model string, feePaid *big.Int, now time.Time) (string, error) {
	return r.submit(ctx, r.cfg.ServiceAccount, requester, prompt, model, feePaid, now)
}

// SubmitFor is the caller-pays variant. It shares the identical admission and
// state-machine path with Submit; only the charged account differs.
func (r *registry) SubmitFor(ctx context.Context, payer, requester, prompt, model string, feePaid *big.Int, now time.Time) (string, error) {
	return r.submit(ctx, payer, requester, prompt, model, feePaid, now)
}

func (r *registry) submit(ctx context.Context, payer, requester, prompt, model string, feePaid *big.Int, now time.Time) (string, error) {
	if !r.mx.TryLock() {
		return "", ErrBusy
	}
	defer r.mx.Unlock()

	// Admission checks first, fail fast with nothing mutated and nothing
	// charged.
	if err := policy.ValidateInput(prompt, model); err != nil {
		return "", err
	}
	minFee, maxFee := r.feeBounds(ctx, now)
	if err := policy.ValidateFee(feePaid, minFee, maxFee); err != nil {
		return "", err
	}

	act, err := r.activity.Get(ctx, r.chain, requester)
	if err != nil {
		return "", err
	}
	if act == nil {
		act = &domain.UserActivity{Requester: requester, Chain: r.chain}
	}
	if !policy.CheckRateLimit(act.LastRequestAt, now, policy.RateLimitWindow) {
		return "", ErrRateLimitExceeded
	}
	dayIndex, err := policy.DayIndex(now, policy.ActivityEpoch)
	if err != nil {
		return "", err
	}
	if !policy.CheckDailyLimit(act.CountForDay(dayIndex), policy.MaxDailyRequests) {
		return "", ErrDailyLimitExceeded
	}

	nonce, err := r.requests.NextNonce(ctx, r.chain)
	if err != nil {
		return "", err
	}
	requestID := policy.DeriveRequestID(requester, prompt, model, now, nonce)

	payload, err := json.Marshal(attestationPayload{
		RequestID: requestID,
		Requester: requester,
		Prompt:    prompt,
		Model:     model,
	})
	if err != nil {
		return "", err
	}

	// Oracle forwarding happens before any fee movement: an unreachable
	// oracle aborts the submission with nothing charged.
	attestationID, err := r.relayer.RequestAttestation(ctx, r.cfg.ServiceAccount, requestID, payload, now)
	if err != nil {
		return "", err
	}

	if err := r.ledger.TransferFee(ctx, payer, r.cfg.Treasury, feePaid); err != nil {
		log.Error(ctx, "fee transfer failed, aborting submission", "err", err, "requestID", requestID)
		// the attestation record must not outlive the aborted submission or it
		// would count as pending forever
		if cancelErr := r.relayer.CancelAttestation(ctx, r.cfg.ServiceAccount, requestID); cancelErr != nil {
			log.Error(ctx, "discarding attestation of aborted submission", "err", cancelErr, "requestID", requestID)
		}
		return "", ErrFeeTransferFailed
	}

	req := &domain.VerificationRequest{
		RequestID:     requestID,
		Chain:         r.chain,
		Requester:     requester,
		Prompt:        prompt,
		Model:         model,
		CreatedAt:     now,
		Status:        domain.RequestStatusPending,
		AttestationID: attestationID,
		FeePaid:       feePaid,
	}
	if err := r.requests.Save(ctx, req); err != nil {
		return "", err
	}

	act.Record(now, dayIndex)
	if err := r.activity.Save(ctx, act); err != nil {
		return "", err
	}

	log.Info(ctx, "verification request submitted", "requestID", requestID, "chain", r.chain, "requester", requester)
	return requestID, nil
}

// feeBounds computes the accepted fee window from the dynamic USD target,
// falling back to the static bounds when the price feed is stale or invalid.
// A well-formed submission is never rejected purely due to oracle
// unavailability.
func (r *registry) feeBounds(ctx context.Context, now time.Time) (*big.Int, *big.Int) {
	target, err := r.relayer.ConvertFee(ctx, r.cfg.FeeUSDCents, now)
	if err != nil {
		log.Warn(ctx, "dynamic fee unavailable, using static bounds", "err", err, "chain", r.chain)
		return r.cfg.StaticMinFee, r.cfg.StaticMaxFee
	}
	minFee := new(big.Int).Div(new(big.Int).Mul(target, big.NewInt(r.cfg.MinFeeBPS)), big.NewInt(bpsDenominator))
	maxFee := new(big.Int).Div(new(big.Int).Mul(target, big.NewInt(r.cfg.MaxFeeBPS)), big.NewInt(bpsDenominator))
	return minFee, maxFee
}

// Fulfill transitions a pending request to verified and mints its certificate
func (r *registry) Fulfill(ctx context.Context, requestID, output, attestationID, proof, oracleAccount string, now time.Time) error {
	if !r.authorizer.Has(ctx, ports.CapabilityOracle, oracleAccount) {
		return ErrUnauthorized
	}
	if !r.mx.TryLock() {
		return ErrBusy
	}
	defer r.mx.Unlock()

	req, err := r.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return ErrAlreadyFulfilled
	}
	if req.AttestationID != attestationID {
		return ErrAttestationMismatch
	}
	valid, err := r.relayer.IsAttestationValid(ctx, attestationID)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidAttestation
	}
	if policy.IsExpired(req.CreatedAt, now, policy.RequestTimeout) {
		return ErrRequestExpired
	}

	// The certificate is minted before the request leaves pending: a failed
	// mint leaves the request pending and the whole fulfillment retryable,
	// never verified without a certificate.
	outputHash := policy.DeriveOutputHash(output)
	tokenID, err := r.issuer.Mint(ctx, req.Requester, domain.CertificateMetadata{
		RequestID:  req.RequestID,
		Requester:  req.Requester,
		Prompt:     req.Prompt,
		Model:      req.Model,
		OutputHash: outputHash,
		ProofHash:  policy.DeriveOutputHash(proof),
		Verifier:   oracleAccount,
		IssuedAt:   now,
	})
	if errors.Is(err, ErrCertificateExists) {
		// a previous attempt minted but did not commit the transition; reuse
		// its certificate
		cert, lookupErr := r.issuer.ForRequest(ctx, requestID)
		if lookupErr != nil {
			return lookupErr
		}
		tokenID = cert.TokenID
	} else if err != nil {
		return err
	}

	req.OutputHash = outputHash
	req.Status = domain.RequestStatusVerified
	req.CertificateIssued = true
	if err := r.requests.Update(ctx, req); err != nil {
		return err
	}

	ev := event.RequestVerified{ID: uuid.New(), RequestID: requestID, TokenID: tokenID, Chain: string(r.chain)}
	if err := r.publisher.Publish(ctx, event.RequestVerifiedEvent, &ev); err != nil {
		log.Error(ctx, "publishing request verified event", "err", err, "requestID", requestID)
	}

	log.Info(ctx, "verification request fulfilled", "requestID", requestID, "tokenID", tokenID, "chain", r.chain)
	return nil
}

// MarkFailed transitions a pending request to failed. The reason is opaque
// and carried only for observability.
func (r *registry) MarkFailed(ctx context.Context, requestID, reason, oracleAccount string, now time.Time) error {
	if !r.authorizer.Has(ctx, ports.CapabilityOracle, oracleAccount) {
		return ErrUnauthorized
	}
	if !r.mx.TryLock() {
		return ErrBusy
	}
	defer r.mx.Unlock()

	req, err := r.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return ErrAlreadyProcessed
	}

	req.Status = domain.RequestStatusFailed
	if err := r.requests.Update(ctx, req); err != nil {
		return err
	}
	if err := r.participants.Touch(ctx, r.chain, oracleAccount, false, now); err != nil {
		log.Error(ctx, "updating oracle participant counters", "err", err, "account", oracleAccount)
	}

	ev := event.RequestFailed{ID: uuid.New(), RequestID: requestID, Reason: reason, Chain: string(r.chain)}
	if err := r.publisher.Publish(ctx, event.RequestFailedEvent, &ev); err != nil {
		log.Error(ctx, "publishing request failed event", "err", err, "requestID", requestID)
	}

	log.Info(ctx, "verification request failed", "requestID", requestID, "reason", reason, "chain", r.chain)
	return nil
}

// Expire transitions a pending request past its timeout to expired. Any
// caller may invoke it; fees are not refunded.
func (r *registry) Expire(ctx context.Context, requestID string, now time.Time) error {
	if !r.mx.TryLock() {
		return ErrBusy
	}
	defer r.mx.Unlock()

	req, err := r.getRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return ErrAlreadyProcessed
	}
	if !policy.IsExpired(req.CreatedAt, now, policy.RequestTimeout) {
		return ErrNotYetExpired
	}

	req.Status = domain.RequestStatusExpired
	if err := r.requests.Update(ctx, req); err != nil {
		return err
	}
	log.Info(ctx, "verification request expired", "requestID", requestID, "chain", r.chain)
	return nil
}

// UpdateStaticFeeBounds replaces the fallback fee window. The dynamic
// USD-target window is configuration, only the static fallback is adjustable
// at runtime.
func (r *registry) UpdateStaticFeeBounds(ctx context.Context, caller string, min, max *big.Int) error {
	if !r.authorizer.Has(ctx, ports.CapabilityFeeManager, caller) {
		return ErrUnauthorized
	}
	if !r.mx.TryLock() {
		return ErrBusy
	}
	defer r.mx.Unlock()

	if min == nil || max == nil || min.Sign() <= 0 || min.Cmp(max) > 0 {
		return ErrInvalidFeeBounds
	}
	r.cfg.StaticMinFee = new(big.Int).Set(min)
	r.cfg.StaticMaxFee = new(big.Int).Set(max)
	log.Info(ctx, "static fee bounds updated", "chain", r.chain, "min", min, "max", max)
	return nil
}

// VerifyOutput is the independent re-confirmation path: true iff the request
// is verified and output hashes to the stored digest.
func (r *registry) VerifyOutput(ctx context.Context, requestID, output string) (bool, error) {
	req, err := r.getRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	if req.Status != domain.RequestStatusVerified {
		return false, nil
	}
	return policy.DeriveOutputHash(output) == req.OutputHash, nil
}

// Get returns a verification request by id
func (r *registry) Get(ctx context.Context, requestID string) (*domain.VerificationRequest, error) {
	return r.getRequest(ctx, requestID)
}

// ByRequester returns the requests submitted by an account, newest first
func (r *registry) ByRequester(ctx context.Context, requester string, filter *pagination.Filter) ([]domain.VerificationRequest, error) {
	return r.requests.GetByRequester(ctx, r.chain, requester, filter)
}

// Stats aggregates the chain request counters
func (r *registry) Stats(ctx context.Context) (*domain.ChainStats, error) {
	return r.requests.Stats(ctx, r.chain)
}

func (r *registry) getRequest(ctx context.Context, requestID string) (*domain.VerificationRequest, error) {
	req, err := r.requests.GetByID(ctx, r.chain, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrRequestDoesNotExist) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}
