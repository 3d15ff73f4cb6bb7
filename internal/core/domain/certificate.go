package domain

import "time"

// CertificateValidityWindow is the display/trust-decay window for IsValid.
// It is not a revocation: the certificate record never disappears.
const CertificateValidityWindow = 30 * 24 * time.Hour

// Certificate is a non-transferable record proving a prompt/model/output
// combination was verified. There is no transfer, approve or burn operation:
// certificates are permanently bound to their owner.
type Certificate struct {
	TokenID    string
	Chain      Chain
	Owner      string
	RequestID  string
	Prompt     string
	Model      string
	OutputHash string
	ProofHash  string
	IssuedAt   time.Time
	Verifier   string
}

// CertificateMetadata is the mint input assembled by the registry on
// successful fulfillment.
type CertificateMetadata struct {
	RequestID  string
	Requester  string
	Prompt     string
	Model      string
	OutputHash string
	ProofHash  string
	Verifier   string
	IssuedAt   time.Time
}
