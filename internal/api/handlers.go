package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/statementd/statementd/internal/buildinfo"
	"github.com/statementd/statementd/internal/customers"
	"github.com/statementd/statementd/internal/freshness"
	"github.com/statementd/statementd/internal/model"
	"github.com/statementd/statementd/internal/statement"
)

// Handler serves the statement endpoints.
type Handler struct {
	statements *statement.Service
	renderers  map[string]statement.Renderer
	fromDate   model.Date
	logger     *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRenderers sets the renderers served by format name. Without an html
// entry, html uses the service's default renderer.
func WithRenderers(renderers map[string]statement.Renderer) Option {
	return func(h *Handler) { h.renderers = renderers }
}

// NewHandler returns a handler. fromDate is the default period start.
func NewHandler(statements *statement.Service, fromDate model.Date, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		statements: statements,
		renderers:  map[string]statement.Renderer{statement.FormatPDF: statement.NewPDFRenderer("")},
		fromDate:   fromDate,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Feed  string `json:"feed,omitempty"`
}

// FreshnessResponse reports the snapshot state.
type FreshnessResponse struct {
	Fresh       bool   `json:"fresh"`
	LastRefresh string `json:"last_refresh"`
}

// CustomerDTO is one directory entry.
type CustomerDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Health reports liveness and build version.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// Freshness reports whether the snapshot was refreshed today.
func (h *Handler) Freshness(w http.ResponseWriter, r *http.Request) {
	fresh, err := h.statements.IsFresh(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	last, err := h.statements.LastRefresh(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, FreshnessResponse{Fresh: fresh, LastRefresh: last.String()})
}

// Refresh forces a refresh of all four feeds.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.statements.Refresh(r.Context()); err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCustomers returns the customer directory of the current snapshot.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.statements.Customers(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]CustomerDTO, 0, len(list))
	for _, c := range list {
		out = append(out, CustomerDTO{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetStatement builds one customer's statement, as HTML by default or as
// format=pdf or format=json.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("customer id must be an integer"))
		return
	}

	q := r.URL.Query()
	period, err := statement.ResolvePeriod(q.Get("from"), q.Get("to"), h.fromDate, h.statements.Today())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	format := q.Get("format")
	if format == "" {
		format = statement.FormatHTML
	}

	var out []byte
	switch format {
	case statement.FormatJSON:
		doc, err := h.statements.BuildStatement(r.Context(), id, period)
		if err != nil {
			h.writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	default:
		renderer, ok := h.renderers[format]
		switch {
		case ok:
			var doc *statement.Document
			out, doc, err = h.statements.Render(r.Context(), renderer, id, period)
			if err == nil {
				w.Header().Set("Content-Disposition", `inline; filename="`+statement.FileName(doc, "."+format)+`"`)
			}
		case format == statement.FormatHTML:
			out, _, err = h.statements.RenderStatement(r.Context(), id, period)
		default:
			h.writeError(w, http.StatusBadRequest, errors.New("format must be html, pdf or json"))
			return
		}
	}
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", statement.ContentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// statusFor maps service errors to HTTP status codes. Render failures and
// anything unclassified are 500.
func statusFor(err error) int {
	var refreshErr *freshness.RefreshError
	switch {
	case errors.Is(err, customers.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, statement.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.As(err, &refreshErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var refreshErr *freshness.RefreshError
	if errors.As(err, &refreshErr) {
		resp.Feed = string(refreshErr.Feed)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
