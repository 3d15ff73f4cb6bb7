package ports

import (
	"context"
	"math/big"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
)

// RegistryService drives the verification request lifecycle on one chain
type RegistryService interface {
	// Submit is the backend-initiated entry point: the configured service
	// account is charged on behalf of requester.
	Submit(ctx context.Context, requester, prompt, model string, feePaid *big.Int, now time.Time) (string, error)
	// SubmitFor is the caller-pays variant. It shares the identical admission
	// and state-machine logic with Submit and differs only in who is charged.
	SubmitFor(ctx context.Context, payer, requester, prompt, model string, feePaid *big.Int, now time.Time) (string, error)
	Fulfill(ctx context.Context, requestID, output, attestationID, proof, oracleAccount string, now time.Time) error
	MarkFailed(ctx context.Context, requestID, reason, oracleAccount string, now time.Time) error
	Expire(ctx context.Context, requestID string, now time.Time) error
	VerifyOutput(ctx context.Context, requestID, output string) (bool, error)
	// UpdateStaticFeeBounds replaces the fallback fee window used when the
	// price feed is stale or unavailable. Requires the fee-manager capability.
	UpdateStaticFeeBounds(ctx context.Context, caller string, min, max *big.Int) error
	Get(ctx context.Context, requestID string) (*domain.VerificationRequest, error)
	ByRequester(ctx context.Context, requester string, filter *pagination.Filter) ([]domain.VerificationRequest, error)
	Stats(ctx context.Context) (*domain.ChainStats, error)
}
