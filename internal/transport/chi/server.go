// Package chi exposes the HTTP API: alert and webhook management, live
// search, document ingest with immediate alerting, and the admin
// endpoints that drive digests and corpus sweeps.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/query"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
	alertcheckuc "github.com/caselens/lexalert/internal/usecase/alertcheck"
	alertsuc "github.com/caselens/lexalert/internal/usecase/alerts"
	digestuc "github.com/caselens/lexalert/internal/usecase/digest"
	healthuc "github.com/caselens/lexalert/internal/usecase/health"
	ingestuc "github.com/caselens/lexalert/internal/usecase/ingest"
	searchuc "github.com/caselens/lexalert/internal/usecase/search"
	webhooksuc "github.com/caselens/lexalert/internal/usecase/webhooks"
)

// userHeader names the acting user on user-scoped routes.
const userHeader = "X-User-ID"

type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeQuerySyntax       errorCode = "query_syntax_error"
	codeAlertNotFound     errorCode = "alert_not_found"
	codeWebhookNotFound   errorCode = "webhook_not_found"
	codeUserNotFound      errorCode = "user_not_found"
	codeDocumentNotFound  errorCode = "document_not_found"
	codeInvalidDigestDate errorCode = "invalid_digest_date"
	codeInternalError     errorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the usecase services to HTTP.
type Server struct {
	alerts     *alertsuc.Service
	webhooks   *webhooksuc.Service
	search     *searchuc.Service
	ingest     *ingestuc.Service
	digest     *digestuc.Service
	alertcheck *alertcheckuc.Service
	health     *healthuc.Service

	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	alerts *alertsuc.Service,
	webhooks *webhooksuc.Service,
	search *searchuc.Service,
	ingest *ingestuc.Service,
	digest *digestuc.Service,
	alertcheck *alertcheckuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		alerts:     alerts,
		webhooks:   webhooks,
		search:     search,
		ingest:     ingest,
		digest:     digest,
		alertcheck: alertcheck,
		health:     health,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		syntaxErrorHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrAlertNotFound, http.StatusNotFound, codeAlertNotFound),
		sentinelHandler(domain.ErrWebhookNotFound, http.StatusNotFound, codeWebhookNotFound),
		sentinelHandler(domain.ErrUserNotFound, http.StatusNotFound, codeUserNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrInvalidDigestDate, http.StatusConflict, codeInvalidDigestDate),
	}
	return s
}

// Routes mounts every endpoint on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Get("/search", s.Search)

	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", s.CreateAlert)
		r.Get("/", s.ListAlerts)
		r.Get("/{id}", s.GetAlert)
		r.Put("/{id}", s.UpdateAlert)
		r.Delete("/{id}", s.DeleteAlert)
		r.Post("/{id}/disable", s.DisableAlert)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/", s.CreateWebhook)
		r.Get("/", s.ListWebhooks)
		r.Get("/{id}", s.GetWebhook)
		r.Patch("/{id}", s.PatchWebhook)
		r.Delete("/{id}", s.DeleteWebhook)
	})

	r.Route("/documents/{type}/{id}", func(r chi.Router) {
		r.Put("/", s.IndexDocument)
		r.Delete("/", s.DeleteDocument)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/digests/{rate}", s.RunDigest)
		r.Post("/digests/cleanup", s.CleanupDigests)
		r.Post("/alertcheck", s.RunAlertCheck)
	})
}

// --- Alerts ---

type alertRequest struct {
	Name  string `json:"name"`
	Query string `json:"query"`
	Rate  string `json:"rate"`
}

type alertResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Query     string `json:"query"`
	Rate      string `json:"rate"`
	Type      string `json:"search_type"`
	SecretKey string `json:"secret_key"`
	Valid     bool   `json:"valid"`
	CreatedAt string `json:"date_created"`
	LastHitAt string `json:"date_last_hit,omitempty"`
}

// CreateAlert handles POST /alerts.
func (s *Server) CreateAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := s.alerts.Create(r.Context(), userID, req.Name, req.Query, domalert.Rate(req.Rate))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alertToResponse(a))
}

// ListAlerts handles GET /alerts.
func (s *Server) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	alerts, err := s.alerts.List(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		items[i] = alertToResponse(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetAlert handles GET /alerts/{id}.
func (s *Server) GetAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	a, err := s.alerts.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertToResponse(a))
}

// UpdateAlert handles PUT /alerts/{id}.
func (s *Server) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := s.alerts.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Name, req.Query, domalert.Rate(req.Rate))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertToResponse(a))
}

// DeleteAlert handles DELETE /alerts/{id}.
func (s *Server) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.alerts.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisableAlert handles POST /alerts/{id}/disable. The secret key from the
// unsubscribe link authorizes the change, no session required.
func (s *Server) DisableAlert(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing key parameter")
		return
	}
	if err := s.alerts.Disable(r.Context(), chi.URLParam(r, "id"), key); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Webhooks ---

type webhookRequest struct {
	Endpoint string `json:"endpoint"`
	Event    string `json:"event_type"`
	Enabled  *bool  `json:"enabled"`
}

type webhookResponse struct {
	ID        string `json:"id"`
	Endpoint  string `json:"endpoint"`
	Event     string `json:"event_type"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"date_created"`
}

// CreateWebhook handles POST /webhooks.
func (s *Server) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	hook, err := s.webhooks.Create(r.Context(), userID, req.Endpoint, domwebhook.EventType(req.Event), enabled)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, webhookToResponse(hook))
}

// ListWebhooks handles GET /webhooks.
func (s *Server) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	hooks, err := s.webhooks.List(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	items := make([]webhookResponse, len(hooks))
	for i, h := range hooks {
		items[i] = webhookToResponse(h)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetWebhook handles GET /webhooks/{id}.
func (s *Server) GetWebhook(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	hook, err := s.webhooks.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookToResponse(hook))
}

// PatchWebhook handles PATCH /webhooks/{id}. Only the enabled flag is
// mutable; endpoint changes are a delete and re-create.
func (s *Server) PatchWebhook(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "enabled is required")
		return
	}

	hook, err := s.webhooks.SetEnabled(r.Context(), userID, chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookToResponse(hook))
}

// DeleteWebhook handles DELETE /webhooks/{id}.
func (s *Server) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.webhooks.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Search ---

type searchResponse struct {
	Results  []documentResponse `json:"results"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type documentResponse struct {
	ID         string             `json:"id"`
	Fields     map[string]string  `json:"fields"`
	ChildDocs  []documentResponse `json:"child_docs,omitempty"`
	ChildCount int                `json:"child_count,omitempty"`
}

// Search handles GET /search. The whole query string minus the paging
// parameters is the search criteria.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	vals := r.URL.Query()
	page := intParam(vals, "page", 1)
	pageSize := intParam(vals, "page_size", 0)
	vals.Del("page")
	vals.Del("page_size")

	res, err := s.search.Run(r.Context(), vals.Encode(), page, pageSize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := searchResponse{
		Results:  make([]documentResponse, 0, len(res.Docs)),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	}
	for _, d := range res.Docs {
		resp.Results = append(resp.Results, docToResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Documents ---

type indexResponse struct {
	Matches   int `json:"alert_matches"`
	Emails    int `json:"emails_sent"`
	Webhooks  int `json:"webhooks_sent"`
	Scheduled int `json:"hits_scheduled"`
}

// IndexDocument handles PUT /documents/{type}/{id}.
func (s *Server) IndexDocument(w http.ResponseWriter, r *http.Request) {
	t := searchtype.Type(chi.URLParam(r, "type"))
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.ingest.Index(r.Context(), t, chi.URLParam(r, "id"), fields)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{
		Matches:   res.Matches,
		Emails:    res.Dispatch.EmailsSent,
		Webhooks:  res.Dispatch.WebhooksSent,
		Scheduled: res.Dispatch.HitsScheduled,
	})
}

// DeleteDocument handles DELETE /documents/{type}/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	t := searchtype.Type(chi.URLParam(r, "type"))
	if !t.IsValid() {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "unknown search type")
		return
	}
	if err := s.ingest.Remove(r.Context(), t, chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Admin ---

// RunDigest handles POST /admin/digests/{rate}.
func (s *Server) RunDigest(w http.ResponseWriter, r *http.Request) {
	sum, err := s.digest.Run(r.Context(), domalert.Rate(chi.URLParam(r, "rate")))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"users":       sum.Users,
		"emails_sent": sum.EmailsSent,
		"hits_sent":   sum.HitsSent,
		"hits_orphan": sum.HitsOrphan,
	})
}

// CleanupDigests handles POST /admin/digests/cleanup.
func (s *Server) CleanupDigests(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.digest.Cleanup(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// RunAlertCheck handles POST /admin/alertcheck.
func (s *Server) RunAlertCheck(w http.ResponseWriter, r *http.Request) {
	rep, err := s.alertcheck.Run(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"checked": rep.Checked,
		"flagged": rep.Flagged,
		"synced":  rep.Synced,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- Helpers ---

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing "+userHeader+" header")
		return "", false
	}
	return userID, true
}

func alertToResponse(a domalert.Alert) alertResponse {
	resp := alertResponse{
		ID:        a.ID(),
		Name:      a.Name(),
		Query:     a.Query(),
		Rate:      string(a.Rate()),
		Type:      string(a.Type()),
		SecretKey: a.SecretKey(),
		Valid:     a.Valid(),
		CreatedAt: a.CreatedAt().Format("2006-01-02T15:04:05Z"),
	}
	if !a.LastHitAt().IsZero() {
		resp.LastHitAt = a.LastHitAt().Format("2006-01-02T15:04:05Z")
	}
	return resp
}

func webhookToResponse(h domwebhook.Webhook) webhookResponse {
	return webhookResponse{
		ID:        h.ID(),
		Endpoint:  h.Endpoint(),
		Event:     string(h.Event()),
		Enabled:   h.Enabled(),
		CreatedAt: h.CreatedAt().Format("2006-01-02T15:04:05Z"),
	}
}

func docToResponse(d hit.Document) documentResponse {
	resp := documentResponse{ID: d.ID, Fields: d.Fields, ChildCount: d.ChildCount}
	for _, child := range d.ChildDocs {
		resp.ChildDocs = append(resp.ChildDocs, docToResponse(child))
	}
	return resp
}

func intParam(vals url.Values, name string, fallback int) int {
	raw := vals.Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrAlertNotFound,
		domain.ErrWebhookNotFound,
		domain.ErrUserNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrInvalidDigestDate,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// syntaxErrorHandler surfaces the syntax kind so clients can show a
// targeted correction hint.
func syntaxErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, query.ErrSyntax) {
		return false
	}
	var se *query.SyntaxError
	if errors.As(err, &se) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    codeQuerySyntax,
			"message": "query could not be parsed",
			"kind":    se.Kind.String(),
		})
		return true
	}
	writeError(w, http.StatusBadRequest, codeQuerySyntax, "query could not be parsed")
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
