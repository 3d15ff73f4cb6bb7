package services

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/verichain-labs/verification-node/internal/cache"
	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/pubsub"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

// Fixed accounts used across the service tests
const (
	ownerAccount      = "0xowner"
	oracleAccount     = "0xoracle"
	serviceAccount    = "0xservice"
	treasury          = "0xtreasury"
	feeManagerAccount = "0xfeemanager"
	requester         = "0xalice"
	otherRequester    = "0xbob"
)

// baseTime is the reference clock for the tests. All offsets are relative to it.
var baseTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

var (
	_ ports.LedgerClient         = (*ledgerMock)(nil)
	_ ports.AttestationForwarder = (*forwarderMock)(nil)
	_ ports.PriceFeed            = (*feedMock)(nil)
)

type feeTransfer struct {
	from, to string
	amount   *big.Int
}

// ledgerMock implements ports.LedgerClient in memory
type ledgerMock struct {
	mu          sync.Mutex
	transfers   []feeTransfer
	transferErr error
	pingErr     error
	balance     *big.Int
}

func (l *ledgerMock) BalanceAt(_ context.Context, _ string) (*big.Int, error) {
	if l.balance == nil {
		return big.NewInt(0), nil
	}
	return l.balance, nil
}

func (l *ledgerMock) TransferFee(_ context.Context, from, to string, amount *big.Int) error {
	if l.transferErr != nil {
		return l.transferErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers = append(l.transfers, feeTransfer{from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

func (l *ledgerMock) AccountExists(_ context.Context, _ string) (bool, error) { return true, nil }

func (l *ledgerMock) Sequence(_ context.Context) (uint64, error) { return 1, nil }

func (l *ledgerMock) Ping(_ context.Context) error { return l.pingErr }

func (l *ledgerMock) transferCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.transfers)
}

// forwarderMock implements ports.AttestationForwarder in memory
type forwarderMock struct {
	mu         sync.Mutex
	forwarded  []string
	forwardErr error
	pingErr    error
}

func (f *forwarderMock) Forward(_ context.Context, requestID string, _ []byte) error {
	if f.forwardErr != nil {
		return f.forwardErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, requestID)
	return nil
}

func (f *forwarderMock) Ping(_ context.Context) error { return f.pingErr }

func (f *forwarderMock) forwardedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwarded)
}

// feedMock implements ports.PriceFeed with a fixed quote
type feedMock struct {
	mu    sync.Mutex
	price string
	asOf  time.Time
	err   error
	calls int
}

func (f *feedMock) GetPrice(_ context.Context, assetID string) (*domain.PriceQuote, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	price, _, err := apd.NewFromString(f.price)
	if err != nil {
		return nil, err
	}
	return &domain.PriceQuote{AssetID: assetID, Price: price, AsOf: f.asOf}, nil
}

func (f *feedMock) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testBackend wires one chain's services over in-memory repositories and mocks.
// With the default quote (2000 USD, 9 decimals, 100-cent target) the dynamic
// fee window is [250000, 1000000] native units; the static fallback window is
// [100, 1000].
type testBackend struct {
	chain        domain.Chain
	ledger       *ledgerMock
	forwarder    *forwarderMock
	feed         *feedMock
	publisher    *pubsub.Mock
	requests     ports.RequestRepository
	activity     ports.ActivityRepository
	attestations ports.AttestationRepository
	participants ports.ParticipantRepository
	certs        ports.CertificateRepository
	authorizer   ports.Authorizer
	registry     ports.RegistryService
	relayer      ports.RelayerService
	issuer       ports.IssuerService
}

func newTestBackend(chain domain.Chain) *testBackend {
	b := &testBackend{
		chain:        chain,
		ledger:       &ledgerMock{},
		forwarder:    &forwarderMock{},
		feed:         &feedMock{price: "2000", asOf: baseTime},
		publisher:    pubsub.NewMock(),
		requests:     repositories.NewRequestsInMemory(),
		activity:     repositories.NewActivityInMemory(),
		attestations: repositories.NewAttestationsInMemory(),
		participants: repositories.NewParticipantsInMemory(),
		certs:        repositories.NewCertificatesInMemory(),
	}
	b.authorizer = NewStaticAuthorizer(ownerAccount, map[ports.Capability][]string{
		ports.CapabilityOracle:     {oracleAccount},
		ports.CapabilityRelay:      {serviceAccount, oracleAccount},
		ports.CapabilityFeeManager: {feeManagerAccount},
	})
	b.relayer = NewRelayer(chain, b.attestations, b.participants, b.forwarder, b.feed, b.authorizer, b.publisher, &cache.NullCache{}, RelayerConfig{
		Owner:          ownerAccount,
		AssetID:        "TKN",
		NativeDecimals: 9,
	})
	b.issuer = NewIssuer(chain, b.certs)
	b.registry = NewRegistry(chain, b.requests, b.activity, b.participants, b.relayer, b.issuer, b.ledger, b.authorizer, b.publisher, defaultRegistryConfig())
	return b
}

func defaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ServiceAccount: serviceAccount,
		Treasury:       treasury,
		FeeUSDCents:    100,
		MinFeeBPS:      5000,
		MaxFeeBPS:      20000,
		StaticMinFee:   big.NewInt(100),
		StaticMaxFee:   big.NewInt(1000),
	}
}

// validFee sits inside the default dynamic window
func validFee() *big.Int { return big.NewInt(500000) }

// submit admits one request at now and fails the test on error
func (b *testBackend) submit(ctx context.Context, t *testing.T, account string, now time.Time) string {
	t.Helper()
	requestID, err := b.registry.Submit(ctx, account, "is this image AI generated?", "gpt-4o", validFee(), now)
	require.NoError(t, err)
	return requestID
}

// fulfill runs the oracle side of the happy path: attestation fulfillment
// followed by the registry transition.
func (b *testBackend) fulfill(ctx context.Context, t *testing.T, requestID, output string, now time.Time) {
	t.Helper()
	req, err := b.registry.Get(ctx, requestID)
	require.NoError(t, err)
	require.NoError(t, b.relayer.FulfillAttestation(ctx, oracleAccount, requestID, output, "proof-blob", now))
	require.NoError(t, b.registry.Fulfill(ctx, requestID, output, req.AttestationID, "proof-blob", oracleAccount, now))
}
