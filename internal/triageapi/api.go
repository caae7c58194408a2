// Package triageapi exposes the triage pipeline over HTTP: message ingestion,
// the zone grid, vector reads, escalation, and zone corrections.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/docbox/internal/mailbox"
	"github.com/linnemanlabs/docbox/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Ingest(ctx context.Context, msg *mailbox.Message) (*triage.StateVector, error)
	Get(ctx context.Context, id string) (*triage.StateVector, bool, error)
	Escalate(ctx context.Context, id string) (*triage.StateVector, error)
	Correct(ctx context.Context, id string, zone triage.Zone) (*triage.StateVector, error)
	Grid(ctx context.Context, ownerFilter string, previewLimit int) (*triage.Grid, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger       log.Logger
	svc          TriageService
	previewLimit int
}

// New creates a new API handler. previewLimit is the per-zone item count used
// when a grid request does not specify one; it is clamped to the valid range.
func New(logger log.Logger, svc TriageService, previewLimit int) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:       logger,
		svc:          svc,
		previewLimit: triage.ClampPreviewLimit(previewLimit),
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", a.handleIngestMessage)
		r.Get("/grid", a.handleGetGrid)
		r.Get("/vectors/{id}", a.handleGetVector)
		r.Post("/vectors/{id}/escalate", a.handleEscalate)
		r.Post("/vectors/{id}/correct", a.handleCorrect)
	})
}

func (a *API) handleGetVector(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("docbox.vector.id", id))

	v, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get state vector", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("docbox.vector.lifecycle", string(v.Lifecycle)))
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleEscalate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := a.svc.Escalate(r.Context(), id)
	if err != nil {
		if errors.Is(err, triage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		a.logger.Error(r.Context(), err, "escalation failed", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
