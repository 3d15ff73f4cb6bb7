package domain

import "math/big"

// ChainStats aggregates per-chain protocol counters
type ChainStats struct {
	Chain               Chain    `json:"chain"`
	TotalRequests       int64    `json:"totalRequests"`
	PendingRequests     int64    `json:"pendingRequests"`
	VerifiedRequests    int64    `json:"verifiedRequests"`
	FailedRequests      int64    `json:"failedRequests"`
	ExpiredRequests     int64    `json:"expiredRequests"`
	CertificatesIssued  int64    `json:"certificatesIssued"`
	FeesCollected       *big.Int `json:"feesCollected"`
	PendingAttestations int64    `json:"pendingAttestations"`
}

// RouterStats is the combined cross-chain view. Degraded lists the chains
// whose sub-results are zeroed because the chain call failed; this keeps
// partial results distinguishable from genuinely empty ones.
type RouterStats struct {
	Chains   []ChainStats `json:"chains"`
	Degraded []Chain      `json:"degraded"`
}

// ChainHealth is a single chain's health probe result
type ChainHealth struct {
	Chain  Chain `json:"chain"`
	Ledger bool  `json:"ledger"`
	Oracle bool  `json:"oracle"`
}

// HealthReport aggregates per-chain health. A failing chain reports false
// sub-results and is listed in Degraded, it never aborts the aggregation.
type HealthReport struct {
	Healthy  bool          `json:"healthy"`
	Chains   []ChainHealth `json:"chains"`
	Degraded []Chain       `json:"degraded"`
}

// CertificatePage is a stable-paginated cross-chain certificate listing with
// the per-chain breakdown the router reports.
type CertificatePage struct {
	Certificates []Certificate `json:"certificates"`
	Total        int           `json:"total"`
	PerChain     map[Chain]int `json:"perChain"`
	Degraded     []Chain       `json:"degraded"`
}
