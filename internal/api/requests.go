package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

type submitRequest struct {
	Requester string `json:"requester"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	Fee       string `json:"fee"`
	// Payer optionally charges an account other than the node's service
	// account
	Payer string `json:"payer,omitempty"`
	Chain string `json:"chain,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"requestID"`
	Chain     string `json:"chain"`
}

type verificationResponse struct {
	RequestID         string    `json:"requestID"`
	Chain             string    `json:"chain"`
	Requester         string    `json:"requester"`
	Prompt            string    `json:"prompt"`
	Model             string    `json:"model"`
	CreatedAt         time.Time `json:"createdAt"`
	Status            string    `json:"status"`
	OutputHash        string    `json:"outputHash,omitempty"`
	AttestationID     string    `json:"attestationID"`
	FeePaid           string    `json:"feePaid"`
	CertificateIssued bool      `json:"certificateIssued"`
}

func toVerificationResponse(req *domain.VerificationRequest, chain domain.Chain) verificationResponse {
	fee := "0"
	if req.FeePaid != nil {
		fee = req.FeePaid.String()
	}
	return verificationResponse{
		RequestID:         req.RequestID,
		Chain:             string(chain),
		Requester:         req.Requester,
		Prompt:            req.Prompt,
		Model:             req.Model,
		CreatedAt:         req.CreatedAt,
		Status:            string(req.Status),
		OutputHash:        req.OutputHash,
		AttestationID:     req.AttestationID,
		FeePaid:           fee,
		CertificateIssued: req.CertificateIssued,
	}
}

// parseChain turns an optional chain string into a selector. Unknown values
// are rejected up front so handlers never guess.
func parseChain(raw string) (*domain.Chain, error) {
	if raw == "" {
		return nil, nil
	}
	chain := domain.Chain(raw)
	if !chain.Valid() {
		return nil, domain.ErrUnsupportedChain
	}
	return &chain, nil
}

func chainQuery(r *http.Request) (*domain.Chain, error) {
	return parseChain(r.URL.Query().Get("chain"))
}

func (s *Server) submitVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	fee, ok := new(big.Int).SetString(req.Fee, 10)
	if !ok || fee.Sign() < 0 {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid fee"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var requestID string
	var selected domain.Chain
	if req.Payer != "" {
		requestID, selected, err = s.router.SubmitVerificationFor(ctx, req.Payer, req.Requester, req.Prompt, req.Model, fee, chain, time.Now())
	} else {
		requestID, selected, err = s.router.SubmitVerification(ctx, req.Requester, req.Prompt, req.Model, fee, chain, time.Now())
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, submitResponse{RequestID: requestID, Chain: string(selected)})
}

func (s *Server) getVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chain, err := chainQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	req, selected, err := s.router.GetRequest(ctx, chi.URLParam(r, "id"), chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toVerificationResponse(req, selected))
}

type fulfillRequest struct {
	Output        string `json:"output"`
	AttestationID string `json:"attestationID"`
	Proof         string `json:"proof"`
	OracleAccount string `json:"oracleAccount"`
	Chain         string `json:"chain,omitempty"`
}

func (s *Server) fulfillVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req fulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	requestID := chi.URLParam(r, "id")
	if err := s.router.Fulfill(ctx, requestID, req.Output, req.AttestationID, req.Proof, req.OracleAccount, chain, time.Now()); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{"requestID": requestID, "status": string(domain.RequestStatusVerified)})
}

type failRequest struct {
	Reason        string `json:"reason"`
	OracleAccount string `json:"oracleAccount"`
	Chain         string `json:"chain,omitempty"`
}

func (s *Server) failVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	requestID := chi.URLParam(r, "id")
	if err := s.router.MarkFailed(ctx, requestID, req.Reason, req.OracleAccount, chain, time.Now()); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{"requestID": requestID, "status": string(domain.RequestStatusFailed)})
}

type expireRequest struct {
	Chain string `json:"chain,omitempty"`
}

func (s *Server) expireVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// an empty body selects the default chain
	var req expireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	requestID := chi.URLParam(r, "id")
	if err := s.router.Expire(ctx, requestID, chain, time.Now()); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{"requestID": requestID, "status": string(domain.RequestStatusExpired)})
}

type verifyOutputRequest struct {
	Output string `json:"output"`
	Chain  string `json:"chain,omitempty"`
}

func (s *Server) verifyOutput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verifyOutputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	valid, err := s.router.VerifyOutput(ctx, chi.URLParam(r, "id"), req.Output, chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]bool{"valid": valid})
}
