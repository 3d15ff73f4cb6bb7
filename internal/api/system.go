package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
)

// errInvalidPagination bad max_results/page query values
var errInvalidPagination = errors.New("invalid pagination parameters")

type feeBoundsRequest struct {
	Account      string `json:"account"`
	StaticMinFee string `json:"staticMinFee"`
	StaticMaxFee string `json:"staticMaxFee"`
	Chain        string `json:"chain,omitempty"`
}

// updateFeeBounds replaces the static fallback fee window of one chain.
// Restricted to fee-manager accounts.
func (s *Server) updateFeeBounds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req feeBoundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	minFee, minOK := new(big.Int).SetString(req.StaticMinFee, 10)
	maxFee, maxOK := new(big.Int).SetString(req.StaticMaxFee, 10)
	if !minOK || !maxOK {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid fee"})
		return
	}
	chain, err := parseChain(req.Chain)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := s.router.UpdateStaticFeeBounds(ctx, req.Account, minFee, maxFee, chain); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{
		"staticMinFee": minFee.String(),
		"staticMaxFee": maxFee.String(),
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.router.Stats(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}

func (s *Server) chainHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := s.router.Health(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(ctx, w, status, report)
}

// status reports the node's own backing services (db, redis)
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.health == nil {
		writeJSON(ctx, w, http.StatusOK, map[string]bool{})
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.health.Status(ctx))
}
