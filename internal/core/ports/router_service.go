package ports

import (
	"context"
	"math/big"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
)

// RouterService dispatches protocol operations onto one of the supported
// chains and aggregates cross-chain views.
type RouterService interface {
	SubmitVerification(ctx context.Context, requester, prompt, model string, fee *big.Int, chain *domain.Chain, now time.Time) (string, domain.Chain, error)
	SubmitVerificationFor(ctx context.Context, payer, requester, prompt, model string, fee *big.Int, chain *domain.Chain, now time.Time) (string, domain.Chain, error)
	Fulfill(ctx context.Context, requestID, output, attestationID, proof, oracleAccount string, chain *domain.Chain, now time.Time) error
	// FulfillAttestation records the oracle's verdict for an in-flight
	// attestation on the selected chain.
	FulfillAttestation(ctx context.Context, requestID, result, proof, oracleAccount string, chain *domain.Chain, now time.Time) error
	MarkFailed(ctx context.Context, requestID, reason, oracleAccount string, chain *domain.Chain, now time.Time) error
	Expire(ctx context.Context, requestID string, chain *domain.Chain, now time.Time) error
	VerifyOutput(ctx context.Context, requestID, output string, chain *domain.Chain) (bool, error)
	GetRequest(ctx context.Context, requestID string, chain *domain.Chain) (*domain.VerificationRequest, domain.Chain, error)
	GetCertificate(ctx context.Context, tokenID string, chain *domain.Chain) (*domain.Certificate, domain.Chain, error)
	UserCertificates(ctx context.Context, owner string, chain *domain.Chain, filter *pagination.Filter) (*domain.CertificatePage, error)
	UpdateStaticFeeBounds(ctx context.Context, caller string, min, max *big.Int, chain *domain.Chain) error
	Stats(ctx context.Context) (*domain.RouterStats, error)
	Health(ctx context.Context) (*domain.HealthReport, error)
	Balance(ctx context.Context, account string, chain *domain.Chain) (*big.Int, domain.Chain, error)
}
