package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chainscreen/internal/decisionlog"
	"chainscreen/internal/jurisdiction"
	"chainscreen/internal/liststore"
	"chainscreen/internal/screening"
	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
	"chainscreen/pkg/platform/httputil"
	"chainscreen/pkg/requestcontext"
)

const maxBatchSize = 500

// ScreeningService defines the screening operations the transport exposes.
type ScreeningService interface {
	Screen(ctx context.Context, req screening.Request) (screening.Decision, error)
	ScreenBatch(ctx context.Context, reqs []screening.Request) ([]screening.BatchItem, error)
	LoadSnapshot(ctx context.Context, snap liststore.Snapshot) (id.SnapshotID, error)
	Decision(ctx context.Context, decisionID id.DecisionID) (decisionlog.Record, error)
	Decisions(ctx context.Context, since time.Time, limit int) ([]decisionlog.Record, error)
	CurrentSnapshot() *liststore.View
}

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

// Handler wires screening endpoints to the services.
type Handler struct {
	service       ScreeningService
	jurisdictions *jurisdiction.Table
	logger        *slog.Logger
	health        map[string]HealthCheck
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// WithHealthCheck registers a named dependency probe for /healthz.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *Handler) { h.health[name] = check }
}

// NewHandler constructs the transport handler.
func NewHandler(service ScreeningService, jurisdictions *jurisdiction.Table, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:       service,
		jurisdictions: jurisdictions,
		health:        make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleScreen handles POST /v1/screen.
func (h *Handler) HandleScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := httputil.Decode[screening.Request](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.service.Screen(ctx, req)
	if err != nil {
		h.logError(ctx, "screening failed", err)
		httputil.WriteError(w, err)
		return
	}

	if h.logger != nil {
		h.logger.InfoContext(ctx, "screening served",
			"request_id", requestcontext.RequestID(ctx),
			"decision_id", decision.ID.String(),
			"verdict", decision.Verdict,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

type batchRequest struct {
	Requests []screening.Request `json:"requests"`
}

type batchItemResponse struct {
	Decision *screening.Decision `json:"decision,omitempty"`
	Error    *batchError         `json:"error,omitempty"`
}

type batchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleScreenBatch handles POST /v1/screen/batch.
func (h *Handler) HandleScreenBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[batchRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Requests) > maxBatchSize {
		httputil.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "requests", "batch exceeds maximum size"))
		return
	}

	// A batch-level error means the context was cancelled mid-batch. Elements
	// persisted before the cancellation stay in the decision log; the caller
	// recovers them through GET /v1/decisions.
	items, err := h.service.ScreenBatch(ctx, req.Requests)
	if err != nil {
		h.logError(ctx, "batch screening failed", err)
		httputil.WriteError(w, err)
		return
	}

	out := make([]batchItemResponse, len(items))
	for i, item := range items {
		if item.Err != nil {
			out[i] = batchItemResponse{Error: &batchError{
				Code:    string(dErrors.CodeOf(item.Err)),
				Message: item.Err.Error(),
			}}
			continue
		}
		out[i] = batchItemResponse{Decision: item.Decision}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": out})
}

// HandleLoadSnapshot handles POST /v1/lists/snapshot.
func (h *Handler) HandleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := httputil.Decode[liststore.Snapshot](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshotID, err := h.service.LoadSnapshot(ctx, snap)
	if err != nil {
		h.logError(ctx, "snapshot load failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"snapshot_id":   snapshotID.String(),
		"version_label": snap.VersionLabel,
	})
}

// HandleCurrentSnapshot handles GET /v1/lists/current.
func (h *Handler) HandleCurrentSnapshot(w http.ResponseWriter, _ *http.Request) {
	view := h.service.CurrentSnapshot()
	if view == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no list snapshot loaded"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"snapshot_id":   view.ID().String(),
		"version_label": view.Label(),
		"content_hash":  view.ContentHash(),
		"entries":       view.EntryCount(),
	})
}

// HandleSearch handles GET /v1/lists/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		httputil.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "q", "query must not be empty"))
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view := h.service.CurrentSnapshot()
	if view == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no list snapshot loaded"))
		return
	}
	entries := view.Search(query, limit)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleJurisdiction handles GET /v1/jurisdictions/{code}.
func (h *Handler) HandleJurisdiction(w http.ResponseWriter, r *http.Request) {
	profile, err := h.jurisdictions.Get(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleListDecisions handles GET /v1/decisions.
func (h *Handler) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "since", "must be RFC 3339"))
			return
		}
		since = parsed
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.Decisions(r.Context(), since, limit)
	if err != nil {
		h.logError(r.Context(), "decision listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"decisions": records})
}

// HandleGetDecision handles GET /v1/decisions/{id}.
func (h *Handler) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	decisionID, err := id.ParseDecisionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Decision(r.Context(), decisionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{
		"status":       statusWord(status),
		"dependencies": deps,
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, dErrors.NewField(dErrors.CodeInvalidInput, "limit", "must be a non-negative integer")
	}
	return limit, nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
