package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verichain-labs/verification-node/internal/core/domain"
	"github.com/verichain-labs/verification-node/internal/core/pagination"
)

type certificateResponse struct {
	TokenID    string    `json:"tokenID"`
	Chain      string    `json:"chain"`
	Owner      string    `json:"owner"`
	RequestID  string    `json:"requestID"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	OutputHash string    `json:"outputHash"`
	ProofHash  string    `json:"proofHash,omitempty"`
	IssuedAt   time.Time `json:"issuedAt"`
	Verifier   string    `json:"verifier"`
	Valid      bool      `json:"valid"`
}

func toCertificateResponse(cert *domain.Certificate, now time.Time) certificateResponse {
	return certificateResponse{
		TokenID:    cert.TokenID,
		Chain:      string(cert.Chain),
		Owner:      cert.Owner,
		RequestID:  cert.RequestID,
		Prompt:     cert.Prompt,
		Model:      cert.Model,
		OutputHash: cert.OutputHash,
		ProofHash:  cert.ProofHash,
		IssuedAt:   cert.IssuedAt,
		Verifier:   cert.Verifier,
		Valid:      !now.After(cert.IssuedAt.Add(domain.CertificateValidityWindow)),
	}
}

func (s *Server) getCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chain, err := chainQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	cert, _, err := s.router.GetCertificate(ctx, chi.URLParam(r, "tokenID"), chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toCertificateResponse(cert, time.Now()))
}

type certificatePageResponse struct {
	Certificates []certificateResponse `json:"certificates"`
	Total        int                   `json:"total"`
	PerChain     map[string]int        `json:"perChain"`
	Degraded     []string              `json:"degraded,omitempty"`
}

func (s *Server) userCertificates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chain, err := chainQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	filter, err := pageFilter(r)
	if err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	page, err := s.router.UserCertificates(ctx, chi.URLParam(r, "account"), chain, filter)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	now := time.Now()
	resp := certificatePageResponse{
		Total:        page.Total,
		Certificates: make([]certificateResponse, 0, len(page.Certificates)),
		PerChain:     make(map[string]int, len(page.PerChain)),
	}
	for i := range page.Certificates {
		resp.Certificates = append(resp.Certificates, toCertificateResponse(&page.Certificates[i], now))
	}
	for chain, n := range page.PerChain {
		resp.PerChain[string(chain)] = n
	}
	for _, chain := range page.Degraded {
		resp.Degraded = append(resp.Degraded, string(chain))
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chain, err := chainQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	balance, selected, err := s.router.Balance(ctx, chi.URLParam(r, "account"), chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{
		"account": chi.URLParam(r, "account"),
		"chain":   string(selected),
		"balance": balance.String(),
	})
}

func pageFilter(r *http.Request) (*pagination.Filter, error) {
	query := r.URL.Query()
	var maxResults, page *uint
	if raw := query.Get("max_results"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			return nil, errInvalidPagination
		}
		v := uint(parsed)
		maxResults = &v
	}
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			return nil, errInvalidPagination
		}
		v := uint(parsed)
		page = &v
	}
	if maxResults == nil && page == nil {
		return nil, nil
	}
	return pagination.NewFilter(maxResults, page), nil
}
