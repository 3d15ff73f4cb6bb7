package ports

import (
	"context"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
)

// RequestRepository is the storage interface for verification requests
type RequestRepository interface {
	Save(ctx context.Context, req *domain.VerificationRequest) error
	GetByID(ctx context.Context, chain domain.Chain, requestID string) (*domain.VerificationRequest, error)
	Update(ctx context.Context, req *domain.VerificationRequest) error
	GetByRequester(ctx context.Context, chain domain.Chain, requester string, filter *pagination.Filter) ([]domain.VerificationRequest, error)
	NextNonce(ctx context.Context, chain domain.Chain) (uint64, error)
	Stats(ctx context.Context, chain domain.Chain) (*domain.ChainStats, error)
}

// ActivityRepository is the storage interface for per-account admission counters
type ActivityRepository interface {
	Get(ctx context.Context, chain domain.Chain, requester string) (*domain.UserActivity, error)
	Save(ctx context.Context, activity *domain.UserActivity) error
}

// AttestationRepository is the storage interface for attestation records
type AttestationRepository interface {
	Save(ctx context.Context, rec *domain.AttestationRecord) error
	GetByRequestID(ctx context.Context, chain domain.Chain, requestID string) (*domain.AttestationRecord, error)
	GetByAttestationID(ctx context.Context, chain domain.Chain, attestationID string) (*domain.AttestationRecord, error)
	Update(ctx context.Context, rec *domain.AttestationRecord) error
	Delete(ctx context.Context, chain domain.Chain, requestID string) error
	NextSequence(ctx context.Context, chain domain.Chain) (uint64, error)
	CountPending(ctx context.Context, chain domain.Chain) (int64, error)
}

// ParticipantRepository is the storage interface for oracle participants
type ParticipantRepository interface {
	Get(ctx context.Context, chain domain.Chain, account string) (*domain.OracleParticipant, error)
	Save(ctx context.Context, participant *domain.OracleParticipant) error
	Touch(ctx context.Context, chain domain.Chain, account string, success bool, at time.Time) error
}

// CertificateRepository is the storage interface for certificates
type CertificateRepository interface {
	Save(ctx context.Context, cert *domain.Certificate) error
	GetByTokenID(ctx context.Context, chain domain.Chain, tokenID string) (*domain.Certificate, error)
	GetByRequestID(ctx context.Context, chain domain.Chain, requestID string) (*domain.Certificate, error)
	TokensByOwner(ctx context.Context, chain domain.Chain, owner string) ([]string, error)
	TokensByModel(ctx context.Context, chain domain.Chain, model string) ([]string, error)
	CertificatesByOwner(ctx context.Context, chain domain.Chain, owner string) ([]domain.Certificate, error)
	NextTokenSequence(ctx context.Context, chain domain.Chain) (uint64, error)
	Count(ctx context.Context, chain domain.Chain) (int64, error)
}
