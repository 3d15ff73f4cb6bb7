package ports

import (
	"context"
	"math/big"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

// RelayerService bridges to the external attestation/price oracle and tracks
// in-flight attestations for one chain.
type RelayerService interface {
	RequestAttestation(ctx context.Context, caller, requestID string, payload []byte, now time.Time) (string, error)
	FulfillAttestation(ctx context.Context, caller, requestID, result, proof string, now time.Time) error
	// CancelAttestation discards an unfulfilled attestation record, used when
	// the submission it belongs to is aborted after the oracle was notified.
	CancelAttestation(ctx context.Context, caller, requestID string) error
	GetPrice(ctx context.Context, assetID string) (*domain.PriceQuote, error)
	// ConvertFee converts a USD-cents amount to native token units using the
	// latest price quote.
	ConvertFee(ctx context.Context, usdCents int64, now time.Time) (*big.Int, error)
	IsAttestationValid(ctx context.Context, attestationID string) (bool, error)
	PendingCount(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
