package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/event"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/policy"
)

func TestRegistrySubmit(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	requestID := b.submit(ctx, t, requester, baseTime)
	assert.Len(t, requestID, 64)

	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, requester, req.Requester)
	assert.Empty(t, req.OutputHash)
	assert.False(t, req.CertificateIssued)
	assert.NotEmpty(t, req.AttestationID)

	// the service account was charged, the payload reached the oracle and the
	// attestation event went out
	require.Equal(t, 1, b.ledger.transferCount())
	assert.Equal(t, serviceAccount, b.ledger.transfers[0].from)
	assert.Equal(t, treasury, b.ledger.transfers[0].to)
	assert.Equal(t, 1, b.forwarder.forwardedCount())
	assert.Len(t, b.publisher.Published(event.AttestationRequestedEvent), 1)
}

func TestRegistrySubmitForChargesPayer(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	_, err := b.registry.SubmitFor(ctx, otherRequester, requester, "prompt", "gpt-4o", validFee(), baseTime)
	require.NoError(t, err)
	require.Equal(t, 1, b.ledger.transferCount())
	assert.Equal(t, otherRequester, b.ledger.transfers[0].from)
}

func TestRegistrySubmitInputValidation(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name   string
		prompt string
		model  string
		expErr error
	}{
		{name: "empty prompt", prompt: "", model: "gpt-4o", expErr: policy.ErrPromptEmpty},
		{name: "prompt too long", prompt: strings.Repeat("a", policy.MaxPromptLen+1), model: "gpt-4o", expErr: policy.ErrPromptTooLong},
		{name: "prompt at limit", prompt: strings.Repeat("a", policy.MaxPromptLen), model: "gpt-4o"},
		{name: "empty model", prompt: "prompt", model: "", expErr: policy.ErrModelEmpty},
		{name: "model too long", prompt: "prompt", model: strings.Repeat("m", policy.MaxModelLen+1), expErr: policy.ErrModelTooLong},
		{name: "model at limit", prompt: "prompt", model: strings.Repeat("m", policy.MaxModelLen)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBackend(domain.ChainEthereum)
			_, err := b.registry.Submit(ctx, requester, tc.prompt, tc.model, validFee(), baseTime)
			if tc.expErr != nil {
				assert.ErrorIs(t, err, tc.expErr)
				assert.Equal(t, 0, b.ledger.transferCount())
				assert.Equal(t, 0, b.forwarder.forwardedCount())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistrySubmitFeeBounds(t *testing.T) {
	ctx := context.Background()
	// dynamic window [250000, 1000000] with the default quote
	for _, tc := range []struct {
		name string
		fee  int64
		ok   bool
	}{
		{name: "below minimum", fee: 249999},
		{name: "at minimum", fee: 250000, ok: true},
		{name: "at maximum", fee: 1000000, ok: true},
		{name: "above maximum", fee: 1000001},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBackend(domain.ChainEthereum)
			_, err := b.registry.Submit(ctx, requester, "prompt", "gpt-4o", big.NewInt(tc.fee), baseTime)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, policy.ErrFeeOutOfRange)
				assert.Equal(t, 0, b.ledger.transferCount())
			}
		})
	}
}

func TestRegistrySubmitStaticFallback(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	// a quote past the staleness window switches the fee check to the
	// static [100, 1000] bounds
	b.feed.asOf = baseTime.Add(-2 * time.Hour)

	_, err := b.registry.Submit(ctx, requester, "prompt", "gpt-4o", big.NewInt(500), baseTime)
	assert.NoError(t, err)

	_, err = b.registry.Submit(ctx, otherRequester, "prompt", "gpt-4o", big.NewInt(50), baseTime)
	assert.ErrorIs(t, err, policy.ErrFeeOutOfRange)
}

func TestRegistryRateLimit(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	b.submit(ctx, t, requester, baseTime)

	_, err := b.registry.Submit(ctx, requester, "prompt", "gpt-4o", validFee(), baseTime.Add(30*time.Second))
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Equal(t, 1, b.ledger.transferCount())

	// another account is not affected
	_, err = b.registry.Submit(ctx, otherRequester, "prompt", "gpt-4o", validFee(), baseTime.Add(30*time.Second))
	assert.NoError(t, err)

	// the window is exactly 60 seconds
	_, err = b.registry.Submit(ctx, requester, "prompt", "gpt-4o", validFee(), baseTime.Add(60*time.Second))
	assert.NoError(t, err)
}

func TestRegistryDailyLimit(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	dayIndex, err := policy.DayIndex(baseTime, policy.ActivityEpoch)
	require.NoError(t, err)

	act := &domain.UserActivity{Requester: requester, Chain: domain.ChainEthereum}
	act.DailyCounts = map[int64]int{dayIndex: policy.MaxDailyRequests - 1}
	require.NoError(t, b.activity.Save(ctx, act))

	// the 100th request of the day is admitted, the 101st is not
	b.submit(ctx, t, requester, baseTime)
	_, err = b.registry.Submit(ctx, requester, "prompt", "gpt-4o", validFee(), baseTime.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)

	// the next day the counter starts fresh
	_, err = b.registry.Submit(ctx, requester, "prompt", "gpt-4o", validFee(), baseTime.Add(24*time.Hour))
	assert.NoError(t, err)
}

func TestRegistrySubmitOracleDown(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	b.forwarder.forwardErr = errors.New("oracle unreachable")

	_, err := b.registry.Submit(ctx, requester, "prompt", "gpt-4o", validFee(), baseTime)
	require.Error(t, err)
	// nothing charged, nothing stored, no activity recorded
	assert.Equal(t, 0, b.ledger.transferCount())
	act, err := b.activity.Get(ctx, domain.ChainEthereum, requester)
	require.NoError(t, err)
	assert.Nil(t, act)
}

func TestRegistrySubmitFeeTransferFails(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	b.ledger.transferErr = errors.New("insufficient funds")

	_, err := b.registry.Submit(ctx, requester, "prompt", "gpt-4o", validFee(), baseTime)
	assert.ErrorIs(t, err, ErrFeeTransferFailed)
	act, err := b.activity.Get(ctx, domain.ChainEthereum, requester)
	require.NoError(t, err)
	assert.Nil(t, act)

	// the attestation record of the aborted submission was discarded too
	pending, err := b.relayer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRegistryFulfill(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	requestID := b.submit(ctx, t, requester, baseTime)
	output := "the image is AI generated with 94% confidence"
	b.fulfill(ctx, t, requestID, output, baseTime.Add(time.Hour))

	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusVerified, req.Status)
	assert.Equal(t, policy.DeriveOutputHash(output), req.OutputHash)
	assert.True(t, req.CertificateIssued)

	cert, err := b.issuer.Get(ctx, "eth-1")
	require.NoError(t, err)
	assert.Equal(t, requester, cert.Owner)
	assert.Equal(t, requestID, cert.RequestID)
	assert.Equal(t, oracleAccount, cert.Verifier)

	assert.Len(t, b.publisher.Published(event.RequestVerifiedEvent), 1)

	// a second fulfillment is rejected and no second certificate appears
	err = b.registry.Fulfill(ctx, requestID, output, req.AttestationID, "proof-blob", oracleAccount, baseTime.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyFulfilled)
	count, err := b.issuer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRegistryFulfillGuards(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	requestID := b.submit(ctx, t, requester, baseTime)
	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)

	t.Run("unauthorized caller", func(t *testing.T) {
		err := b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", requester, baseTime)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown request", func(t *testing.T) {
		err := b.registry.Fulfill(ctx, "deadbeef", "output", req.AttestationID, "proof", oracleAccount, baseTime)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("attestation mismatch", func(t *testing.T) {
		err := b.registry.Fulfill(ctx, requestID, "output", "att-bogus", "proof", oracleAccount, baseTime)
		assert.ErrorIs(t, err, ErrAttestationMismatch)
	})

	t.Run("attestation not fulfilled yet", func(t *testing.T) {
		err := b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", oracleAccount, baseTime)
		assert.ErrorIs(t, err, ErrInvalidAttestation)
	})
}

func TestRegistryFulfillTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("at the timeout boundary", func(t *testing.T) {
		b := newTestBackend(domain.ChainEthereum)
		requestID := b.submit(ctx, t, requester, baseTime)
		// exactly 24h after creation is still inside the window
		b.fulfill(ctx, t, requestID, "output", baseTime.Add(policy.RequestTimeout))
	})

	t.Run("past the timeout", func(t *testing.T) {
		b := newTestBackend(domain.ChainEthereum)
		requestID := b.submit(ctx, t, requester, baseTime)
		req, err := b.registry.Get(ctx, requestID)
		require.NoError(t, err)
		require.NoError(t, b.relayer.FulfillAttestation(ctx, oracleAccount, requestID, "output", "proof", baseTime.Add(time.Hour)))

		err = b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", oracleAccount, baseTime.Add(policy.RequestTimeout+time.Second))
		assert.ErrorIs(t, err, ErrRequestExpired)

		// the rejection left the request pending, so it can still be expired
		req, err = b.registry.Get(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, req.Status)
	})
}

// failingCertsRepo makes Save fail on demand while keeping every other
// repository operation intact
type failingCertsRepo struct {
	ports.CertificateRepository
	failSave bool
}

func (f *failingCertsRepo) Save(ctx context.Context, cert *domain.Certificate) error {
	if f.failSave {
		return errors.New("connection refused")
	}
	return f.CertificateRepository.Save(ctx, cert)
}

func TestRegistryFulfillMintFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	certs := &failingCertsRepo{CertificateRepository: b.certs, failSave: true}
	b.issuer = NewIssuer(domain.ChainEthereum, certs)
	b.registry = NewRegistry(domain.ChainEthereum, b.requests, b.activity, b.participants,
		b.relayer, b.issuer, b.ledger, b.authorizer, b.publisher, defaultRegistryConfig())

	requestID := b.submit(ctx, t, requester, baseTime)
	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	require.NoError(t, b.relayer.FulfillAttestation(ctx, oracleAccount, requestID, "output", "proof", baseTime))

	err = b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", oracleAccount, baseTime)
	require.Error(t, err)

	// the failed mint left the request pending and untouched
	req, err = b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.False(t, req.CertificateIssued)
	assert.Empty(t, req.OutputHash)
	count, err := b.issuer.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// once storage recovers, the retry completes with exactly one certificate
	certs.failSave = false
	require.NoError(t, b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", oracleAccount, baseTime))
	req, err = b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusVerified, req.Status)
	assert.True(t, req.CertificateIssued)
	count, err = b.issuer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRegistryFulfillReusesMintedCertificate(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	requestID := b.submit(ctx, t, requester, baseTime)
	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	require.NoError(t, b.relayer.FulfillAttestation(ctx, oracleAccount, requestID, "output", "proof", baseTime))

	// a certificate already bound to the request, as left behind by a mint
	// whose commit was lost
	_, err = b.issuer.Mint(ctx, requester, certMeta(requestID))
	require.NoError(t, err)

	require.NoError(t, b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", oracleAccount, baseTime))
	req, err = b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusVerified, req.Status)
	assert.True(t, req.CertificateIssued)

	count, err := b.issuer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRegistryMarkFailed(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	requestID := b.submit(ctx, t, requester, baseTime)

	err := b.registry.MarkFailed(ctx, requestID, "oracle timeout", requester, baseTime)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, b.registry.MarkFailed(ctx, requestID, "oracle timeout", oracleAccount, baseTime))
	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusFailed, req.Status)
	assert.Len(t, b.publisher.Published(event.RequestFailedEvent), 1)

	participant, err := b.participants.Get(ctx, domain.ChainEthereum, oracleAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(1), participant.FailureCount)

	// failed is terminal
	err = b.registry.MarkFailed(ctx, requestID, "again", oracleAccount, baseTime)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	err = b.registry.Fulfill(ctx, requestID, "output", req.AttestationID, "proof", oracleAccount, baseTime)
	assert.ErrorIs(t, err, ErrAlreadyFulfilled)
}

func TestRegistryExpire(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	requestID := b.submit(ctx, t, requester, baseTime)

	err := b.registry.Expire(ctx, requestID, baseTime.Add(23*time.Hour))
	assert.ErrorIs(t, err, ErrNotYetExpired)

	require.NoError(t, b.registry.Expire(ctx, requestID, baseTime.Add(25*time.Hour)))
	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusExpired, req.Status)

	err = b.registry.Expire(ctx, requestID, baseTime.Add(26*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// fees are not refunded on expiry
	assert.Equal(t, 1, b.ledger.transferCount())
}

func TestRegistryUpdateStaticFeeBounds(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	// a stale quote routes every submission through the static window
	b.feed.asOf = baseTime.Add(-2 * time.Hour)

	err := b.registry.UpdateStaticFeeBounds(ctx, requester, big.NewInt(1000), big.NewInt(10000))
	assert.ErrorIs(t, err, ErrUnauthorized)

	for _, tc := range []struct {
		name     string
		min, max *big.Int
	}{
		{name: "nil bounds", min: nil, max: nil},
		{name: "zero minimum", min: big.NewInt(0), max: big.NewInt(10)},
		{name: "inverted window", min: big.NewInt(10), max: big.NewInt(1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := b.registry.UpdateStaticFeeBounds(ctx, feeManagerAccount, tc.min, tc.max)
			assert.ErrorIs(t, err, ErrInvalidFeeBounds)
		})
	}

	// outside the default static window [100, 1000]
	_, err = b.registry.Submit(ctx, requester, "prompt", "gpt-4o", big.NewInt(5000), baseTime)
	assert.ErrorIs(t, err, policy.ErrFeeOutOfRange)

	require.NoError(t, b.registry.UpdateStaticFeeBounds(ctx, feeManagerAccount, big.NewInt(1000), big.NewInt(10000)))
	_, err = b.registry.Submit(ctx, requester, "prompt", "gpt-4o", big.NewInt(5000), baseTime)
	assert.NoError(t, err)
}

func TestRegistryRejectsConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	requestID := b.submit(ctx, t, requester, baseTime)

	// hold the mutation lock as an in-flight operation would
	reg := b.registry.(*registry)
	reg.mx.Lock()
	defer reg.mx.Unlock()

	_, err := b.registry.Submit(ctx, otherRequester, "prompt", "gpt-4o", validFee(), baseTime)
	assert.ErrorIs(t, err, ErrBusy)
	err = b.registry.Expire(ctx, requestID, baseTime.Add(25*time.Hour))
	assert.ErrorIs(t, err, ErrBusy)
	err = b.registry.MarkFailed(ctx, requestID, "reason", oracleAccount, baseTime)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRegistryVerifyOutput(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)
	requestID := b.submit(ctx, t, requester, baseTime)

	// pending requests never verify
	ok, err := b.registry.VerifyOutput(ctx, requestID, "output")
	require.NoError(t, err)
	assert.False(t, ok)

	b.fulfill(ctx, t, requestID, "output", baseTime.Add(time.Hour))

	ok, err = b.registry.VerifyOutput(ctx, requestID, "output")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.registry.VerifyOutput(ctx, requestID, "tampered output")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.registry.VerifyOutput(ctx, "deadbeef", "output")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRegistryStats(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	first := b.submit(ctx, t, requester, baseTime)
	second := b.submit(ctx, t, otherRequester, baseTime)
	b.fulfill(ctx, t, first, "output", baseTime.Add(time.Hour))
	require.NoError(t, b.registry.Expire(ctx, second, baseTime.Add(25*time.Hour)))

	stats, err := b.registry.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.VerifiedRequests)
	assert.Equal(t, int64(1), stats.ExpiredRequests)
	assert.Equal(t, int64(0), stats.PendingRequests)
	assert.Equal(t, new(big.Int).Mul(validFee(), big.NewInt(2)), stats.FeesCollected)
}

func TestRegistryByRequester(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(domain.ChainEthereum)

	first := b.submit(ctx, t, requester, baseTime)
	second := b.submit(ctx, t, requester, baseTime.Add(2*time.Minute))
	b.submit(ctx, t, otherRequester, baseTime)

	reqs, err := b.registry.ByRequester(ctx, requester, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	// newest first
	assert.Equal(t, second, reqs[0].RequestID)
	assert.Equal(t, first, reqs[1].RequestID)
}
