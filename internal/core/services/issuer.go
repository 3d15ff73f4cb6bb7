package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/log"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

type issuer struct {
	chain        domain.Chain
	certificates ports.CertificateRepository
}

// NewIssuer returns a new certificate issuer service for one chain
func NewIssuer(chain domain.Chain, certificates ports.CertificateRepository) ports.IssuerService {
	return &issuer{chain: chain, certificates: certificates}
}

// Mint allocates a monotonic token id and stores a soul-bound certificate.
// Exactly one certificate can exist per request id.
func (i *issuer) Mint(ctx context.Context, owner string, meta domain.CertificateMetadata) (string, error) {
	if owner == "" || meta.RequestID == "" || meta.Prompt == "" || meta.Model == "" ||
		meta.OutputHash == "" || meta.IssuedAt.IsZero() {
		return "", ErrInvalidMetadata
	}
	if _, err := i.certificates.GetByRequestID(ctx, i.chain, meta.RequestID); err == nil {
		return "", ErrCertificateExists
	} else if !errors.Is(err, repositories.ErrCertificateDoesNotExist) {
		return "", err
	}

	seq, err := i.certificates.NextTokenSequence(ctx, i.chain)
	if err != nil {
		return "", err
	}
	tokenID := i.chain.TokenIDPrefix() + strconv.FormatUint(seq, 10)

	cert := &domain.Certificate{
		TokenID:    tokenID,
		Chain:      i.chain,
		Owner:      owner,
		RequestID:  meta.RequestID,
		Prompt:     meta.Prompt,
		Model:      meta.Model,
		OutputHash: meta.OutputHash,
		ProofHash:  meta.ProofHash,
		IssuedAt:   meta.IssuedAt,
		Verifier:   meta.Verifier,
	}
	if err := i.certificates.Save(ctx, cert); err != nil {
		if errors.Is(err, repositories.ErrCertificateAlreadyExists) {
			return "", ErrCertificateExists
		}
		return "", err
	}

	log.Info(ctx, "certificate minted", "tokenID", tokenID, "owner", owner, "chain", i.chain)
	return tokenID, nil
}

// IsValid returns true iff the certificate exists and its issuance is within
// the validity window. Expiry here is a trust-decay signal, not a revocation.
func (i *issuer) IsValid(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	cert, err := i.certificates.GetByTokenID(ctx, i.chain, tokenID)
	if err != nil {
		if errors.Is(err, repositories.ErrCertificateDoesNotExist) {
			return false, nil
		}
		return false, err
	}
	return !now.After(cert.IssuedAt.Add(domain.CertificateValidityWindow)), nil
}

// Get returns a certificate by token id
func (i *issuer) Get(ctx context.Context, tokenID string) (*domain.Certificate, error) {
	return i.certificates.GetByTokenID(ctx, i.chain, tokenID)
}

// ForRequest returns the certificate bound to a request id
func (i *issuer) ForRequest(ctx context.Context, requestID string) (*domain.Certificate, error) {
	return i.certificates.GetByRequestID(ctx, i.chain, requestID)
}

// ByOwner returns the owner index in insertion order
func (i *issuer) ByOwner(ctx context.Context, owner string) ([]string, error) {
	return i.certificates.TokensByOwner(ctx, i.chain, owner)
}

// ByModel returns the model index in insertion order
func (i *issuer) ByModel(ctx context.Context, model string) ([]string, error) {
	return i.certificates.TokensByModel(ctx, i.chain, model)
}

// CertificatesOf returns the full certificates owned by an account
func (i *issuer) CertificatesOf(ctx context.Context, owner string) ([]domain.Certificate, error) {
	return i.certificates.CertificatesByOwner(ctx, i.chain, owner)
}

// Count returns the number of minted certificates
func (i *issuer) Count(ctx context.Context) (int64, error) {
	return i.certificates.Count(ctx, i.chain)
}
