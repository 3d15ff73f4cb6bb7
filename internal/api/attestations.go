package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type fulfillAttestationRequest struct {
	Result        string `json:"result"`
	Proof         string `json:"proof"`
	OracleAccount string `json:"oracleAccount"`
	Chain         string `json:"chain,omitempty"`
}

// fulfillAttestation is the oracle-inbound endpoint: the external oracle posts
// its verdict here before the verification request itself is fulfilled.
func (s *Server) fulfillAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req fulfillAttestationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := s.router.FulfillAttestation(ctx, requestID, req.Result, req.Proof, req.OracleAccount, chain, time.Now()); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"requestID": requestID, "fulfilled": true})
}
