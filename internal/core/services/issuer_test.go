package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/policy"
	"github.com/verichain-labs/verification-node/internal/repositories"
)

func newTestIssuer(chain domain.Chain) ports.IssuerService {
	return NewIssuer(chain, repositories.NewCertificatesInMemory())
}

func certMeta(requestID string) domain.CertificateMetadata {
	return domain.CertificateMetadata{
		RequestID:  requestID,
		Requester:  requester,
		Prompt:     "is this image AI generated?",
		Model:      "gpt-4o",
		OutputHash: policy.DeriveOutputHash("output"),
		ProofHash:  policy.DeriveOutputHash("proof"),
		Verifier:   oracleAccount,
		IssuedAt:   baseTime,
	}
}

func TestIssuerMint(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(domain.ChainEthereum)

	tokenID, err := issuer.Mint(ctx, requester, certMeta("r1"))
	require.NoError(t, err)
	assert.Equal(t, "eth-1", tokenID)

	// token ids are monotonic per chain
	tokenID, err = issuer.Mint(ctx, requester, certMeta("r2"))
	require.NoError(t, err)
	assert.Equal(t, "eth-2", tokenID)

	cert, err := issuer.Get(ctx, "eth-1")
	require.NoError(t, err)
	assert.Equal(t, requester, cert.Owner)
	assert.Equal(t, "r1", cert.RequestID)
	assert.Equal(t, oracleAccount, cert.Verifier)

	count, err := issuer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIssuerMintSolanaPrefix(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(domain.ChainSolana)

	tokenID, err := issuer.Mint(ctx, requester, certMeta("r1"))
	require.NoError(t, err)
	assert.Equal(t, "sol-1", tokenID)
}

func TestIssuerMintOnePerRequest(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(domain.ChainEthereum)

	_, err := issuer.Mint(ctx, requester, certMeta("r1"))
	require.NoError(t, err)

	// the same request never yields a second certificate, not even for
	// another owner
	_, err = issuer.Mint(ctx, requester, certMeta("r1"))
	assert.ErrorIs(t, err, ErrCertificateExists)
	_, err = issuer.Mint(ctx, otherRequester, certMeta("r1"))
	assert.ErrorIs(t, err, ErrCertificateExists)

	count, err := issuer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIssuerMintInvalidMetadata(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name   string
		owner  string
		mutate func(*domain.CertificateMetadata)
	}{
		{name: "empty owner", owner: ""},
		{name: "empty request id", owner: requester, mutate: func(m *domain.CertificateMetadata) { m.RequestID = "" }},
		{name: "empty prompt", owner: requester, mutate: func(m *domain.CertificateMetadata) { m.Prompt = "" }},
		{name: "empty model", owner: requester, mutate: func(m *domain.CertificateMetadata) { m.Model = "" }},
		{name: "empty output hash", owner: requester, mutate: func(m *domain.CertificateMetadata) { m.OutputHash = "" }},
		{name: "zero issuance time", owner: requester, mutate: func(m *domain.CertificateMetadata) { m.IssuedAt = time.Time{} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			issuer := newTestIssuer(domain.ChainEthereum)
			meta := certMeta("r1")
			if tc.mutate != nil {
				tc.mutate(&meta)
			}
			_, err := issuer.Mint(ctx, tc.owner, meta)
			assert.ErrorIs(t, err, ErrInvalidMetadata)
		})
	}
}

func TestIssuerIsValid(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(domain.ChainEthereum)
	_, err := issuer.Mint(ctx, requester, certMeta("r1"))
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		token string
		at    time.Time
		valid bool
	}{
		{name: "freshly minted", token: "eth-1", at: baseTime, valid: true},
		{name: "inside the window", token: "eth-1", at: baseTime.Add(29 * 24 * time.Hour), valid: true},
		{name: "at the window boundary", token: "eth-1", at: baseTime.Add(domain.CertificateValidityWindow), valid: true},
		{name: "past the window", token: "eth-1", at: baseTime.Add(domain.CertificateValidityWindow + time.Second), valid: false},
		{name: "unknown token", token: "eth-99", at: baseTime, valid: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			valid, err := issuer.IsValid(ctx, tc.token, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, valid)
		})
	}

	// expiry is a trust signal, the record itself stays readable
	cert, err := issuer.Get(ctx, "eth-1")
	require.NoError(t, err)
	assert.Equal(t, "r1", cert.RequestID)
}

func TestIssuerIndexes(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(domain.ChainEthereum)

	metaA := certMeta("r1")
	_, err := issuer.Mint(ctx, requester, metaA)
	require.NoError(t, err)

	metaB := certMeta("r2")
	metaB.Model = "claude-sonnet"
	_, err = issuer.Mint(ctx, otherRequester, metaB)
	require.NoError(t, err)

	metaC := certMeta("r3")
	_, err = issuer.Mint(ctx, requester, metaC)
	require.NoError(t, err)

	// owner index in insertion order
	tokens, err := issuer.ByOwner(ctx, requester)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth-1", "eth-3"}, tokens)

	tokens, err = issuer.ByModel(ctx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, []string{"eth-1", "eth-3"}, tokens)

	tokens, err = issuer.ByModel(ctx, "claude-sonnet")
	require.NoError(t, err)
	assert.Equal(t, []string{"eth-2"}, tokens)

	tokens, err = issuer.ByOwner(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	certs, err := issuer.CertificatesOf(ctx, requester)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "eth-1", certs[0].TokenID)
	assert.Equal(t, "eth-3", certs[1].TokenID)
}
