package ports

import (
	"context"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

// IssuerService mints and indexes the non-transferable certificates of one
// chain. There is deliberately no transfer, approve or burn operation.
type IssuerService interface {
	Mint(ctx context.Context, owner string, meta domain.CertificateMetadata) (string, error)
	IsValid(ctx context.Context, tokenID string, now time.Time) (bool, error)
	Get(ctx context.Context, tokenID string) (*domain.Certificate, error)
	ForRequest(ctx context.Context, requestID string) (*domain.Certificate, error)
	ByOwner(ctx context.Context, owner string) ([]string, error)
	ByModel(ctx context.Context, model string) ([]string, error)
	CertificatesOf(ctx context.Context, owner string) ([]domain.Certificate, error)
	Count(ctx context.Context) (int64, error)
}
