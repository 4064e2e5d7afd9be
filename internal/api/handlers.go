// Package api exposes the HTTP surface: upload a CSV to open a session, then
// profile it, chart it, and ask questions about it. Every error is mapped to
// a status code and a JSON body; no request failure is fatal to the process.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/comigor/csvchat-go/internal/chart"
	"github.com/comigor/csvchat-go/internal/composer"
	"github.com/comigor/csvchat-go/internal/dataset"
	"github.com/comigor/csvchat-go/internal/logger"
	"github.com/comigor/csvchat-go/internal/session"
)

// Handlers carries the collaborators every endpoint needs. llmReady is the
// configuration error (if any) that blocks LLM-backed endpoints; the rest of
// the API stays usable without a credential.
type Handlers struct {
	registry *session.Registry
	composer *composer.Composer
	llmReady error
}

// NewHandlers creates the handler set. llmReady may be nil (credential
// present) or the configuration error to surface on /ask.
func NewHandlers(registry *session.Registry, comp *composer.Composer, llmReady error) *Handlers {
	return &Handlers{registry: registry, composer: comp, llmReady: llmReady}
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("response encode failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg, hint string) {
	respondJSON(w, status, errorResponse{Error: msg, Hint: hint})
}

// readCSV extracts the CSV payload from either a multipart "file" field or
// the raw request body.
func readCSV(r *http.Request) (io.Reader, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return r.Body, nil
}

type sessionResponse struct {
	ID      string `json:"id"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// CreateSession parses the uploaded CSV and opens a new session around it.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := readCSV(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read upload: "+err.Error(), "")
		return
	}

	tbl, err := dataset.Load(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "check that the file is valid CSV with a header row")
		return
	}

	s := h.registry.Create(tbl)
	logger.L.Info("session created", "session", s.ID, "rows", tbl.RowCount(), "columns", tbl.ColumnCount())
	respondJSON(w, http.StatusCreated, sessionResponse{ID: s.ID, Rows: tbl.RowCount(), Columns: tbl.ColumnCount()})
}

func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown session", "")
		return nil, false
	}
	return s, true
}

// ReplaceCSV swaps the session's dataset wholesale. History is kept.
func (h *Handlers) ReplaceCSV(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	body, err := readCSV(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read upload: "+err.Error(), "")
		return
	}

	tbl, err := dataset.Load(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "check that the file is valid CSV with a header row")
		return
	}

	s.SetTable(tbl)
	logger.L.Info("session dataset replaced", "session", s.ID, "rows", tbl.RowCount())
	respondJSON(w, http.StatusOK, sessionResponse{ID: s.ID, Rows: tbl.RowCount(), Columns: tbl.ColumnCount()})
}

// GetProfile returns the rendered dataset profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"profile": s.Profile()})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask runs one question through the composer against the session's dataset.
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if h.llmReady != nil {
		respondError(w, http.StatusServiceUnavailable, h.llmReady.Error(),
			"set llm.api_key in config.yaml or the OPENAI_API_KEY environment variable")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}

	answer, err := h.composer.Ask(r.Context(), s.Profile(), s.History, req.Question)
	switch {
	case errors.Is(err, composer.ErrEmptyQuestion):
		respondError(w, http.StatusBadRequest, "question must not be empty", "")
	case errors.Is(err, composer.ErrLLMInvocation):
		respondError(w, http.StatusBadGateway, err.Error(),
			"retry the question, or re-check your API credentials")
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error(), "")
	default:
		respondJSON(w, http.StatusOK, askResponse{Answer: answer})
	}
}

// GetHistory returns the ordered exchange log.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"exchanges": s.History.Snapshot()})
}

// ClearHistory empties the exchange log. Idempotent.
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.History.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Chart validates a chart request and returns the extracted series recipe.
func (h *Handlers) Chart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req chart.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}

	recipe, err := chart.Build(s.Table(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	respondJSON(w, http.StatusOK, recipe)
}

// DeleteSession drops the session and its persisted history.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.registry.Delete(s.ID)
	w.WriteHeader(http.StatusNoContent)
}
