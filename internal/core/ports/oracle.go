package ports

import (
	"context"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

// AttestationForwarder is the outbound half of the oracle boundary: it hands
// attestation payloads to the external oracle.
type AttestationForwarder interface {
	Forward(ctx context.Context, requestID string, payload []byte) error
	Ping(ctx context.Context) error
}

// PriceFeed exposes the external price source
type PriceFeed interface {
	GetPrice(ctx context.Context, assetID string) (*domain.PriceQuote, error)
}
