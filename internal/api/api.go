// Package api exposes the verification protocol over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/verichain-labs/verification-node/internal/core/ports"
	"github.com/verichain-labs/verification-node/internal/health"
	"github.com/verichain-labs/verification-node/internal/log"
)

// Server wires the router service into HTTP handlers
type Server struct {
	router ports.RouterService
	health *health.Status
}

// NewServer returns an api Server
func NewServer(router ports.RouterService, healthStatus *health.Status) *Server {
	return &Server{router: router, health: healthStatus}
}

// Routes builds the http handler tree
func (s *Server) Routes(ctx context.Context) http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.Recoverer,
		cors.AllowAll().Handler,
		log.ChiMiddleware(ctx),
	)

	mux.Route("/v1", func(r chi.Router) {
		r.Route("/verifications", func(r chi.Router) {
			r.Post("/", s.submitVerification)
			r.Get("/{id}", s.getVerification)
			r.Post("/{id}/fulfill", s.fulfillVerification)
			r.Post("/{id}/fail", s.failVerification)
			r.Post("/{id}/expire", s.expireVerification)
			r.Post("/{id}/verify", s.verifyOutput)
		})
		r.Route("/attestations", func(r chi.Router) {
			r.Post("/{requestID}/fulfill", s.fulfillAttestation)
		})
		r.Route("/certificates", func(r chi.Router) {
			r.Get("/{tokenID}", s.getCertificate)
		})
		r.Put("/fees/static", s.updateFeeBounds)
		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/certificates", s.userCertificates)
			r.Get("/balance", s.accountBalance)
		})
		r.Get("/stats", s.stats)
		r.Get("/health", s.chainHealth)
	})
	mux.Get("/status", s.status)

	return mux
}
