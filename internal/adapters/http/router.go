package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/docs-governance/internal/config"
	"github.com/kirillkom/docs-governance/internal/core/ports"
	"github.com/kirillkom/docs-governance/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg       config.Config
	documents ports.DocumentService
	comments  ports.CommentService
	journal   ports.JournalService
	metrics   *metrics.HTTPServerMetrics
	tokens    *tokenVerifier
	uploads   uploadPolicy
	ready     func(context.Context) error
}

func NewRouter(
	cfg config.Config,
	documents ports.DocumentService,
	comments ports.CommentService,
	journal ports.JournalService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		documents: documents,
		comments:  comments,
		journal:   journal,
		metrics:   httpMetrics,
		tokens:    newTokenVerifier(cfg.JWTSecret),
		uploads:   newUploadPolicy(cfg.MaxUploadBytes(), cfg.AllowedExtensions),
	}
}

// WithReadiness enables GET /readyz backed by check.
func (rt *Router) WithReadiness(check func(context.Context) error) *Router {
	rt.ready = check
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	if rt.ready != nil {
		r.Get("/readyz", rt.readyz)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rt.rateLimit, rt.backpressure, rt.tokens.middleware)

		api.Route("/documents", func(docs chi.Router) {
			docs.Get("/", rt.listDocuments)
			docs.Post("/", rt.createDocument)

			docs.Route("/{id}", func(doc chi.Router) {
				doc.Get("/", rt.getDocument)
				doc.Put("/", rt.updateDocument)
				doc.Delete("/", rt.deleteDocument)
				doc.Get("/download", rt.downloadDocument)

				doc.Get("/versions", rt.listVersions)
				doc.Post("/versions", rt.addVersion)
				doc.Get("/versions/{versionId}/download", rt.downloadVersion)

				doc.Get("/comments", rt.listComments)
				doc.Post("/comments", rt.addComment)
			})
		})

		api.Get("/journal", rt.listJournal)
		api.Get("/journal/export", rt.exportJournal)
	})

	return r
}

func (rt *Router) rateLimit(next http.Handler) http.Handler {
	var onLimited func()
	if rt.metrics != nil {
		onLimited = func() { rt.metrics.RecordRateLimited(serviceName) }
	}
	return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onLimited)
}

func (rt *Router) backpressure(next http.Handler) http.Handler {
	return backpressureMiddleware(next, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWait)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if err := rt.ready(r.Context()); err != nil {
		slog.Warn("readiness_check_failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
