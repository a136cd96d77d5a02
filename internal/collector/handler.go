package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the exporter service
type Handler struct {
	manager    *RunManager
	auth       AuthService
	authEvents AuthObserver
}

// NewHandler creates a new handler with the given manager
func NewHandler(manager *RunManager, opts ...HandlerOption) *Handler {
	h := &Handler{
		manager: manager,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.auth != nil {
		body["telegram"] = string(h.auth.GetStatus())
	}
	respondJSON(w, http.StatusOK, body)
}

// ValidateLinksRequest is the body of POST /api/v1/links/validate
type ValidateLinksRequest struct {
	Links []string `json:"links"`
	Text  string   `json:"text,omitempty"`
}

// ValidateLinksResponse lists accepted and rejected lines in input order
type ValidateLinksResponse struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// ValidateLinks handles POST /api/v1/links/validate
func (h *Handler) ValidateLinks(w http.ResponseWriter, r *http.Request) {
	var req ValidateLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	lines := append([]string(nil), req.Links...)
	if req.Text != "" {
		lines = append(lines, SplitLines(req.Text)...)
	}

	valid, invalid := ValidateLinks(lines)
	if valid == nil {
		valid = []string{}
	}
	if invalid == nil {
		invalid = []string{}
	}
	respondJSON(w, http.StatusOK, ValidateLinksResponse{Valid: valid, Invalid: invalid})
}

// StartScrape handles POST /api/v1/scrape
func (h *Handler) StartScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	opts, refs, rejected, err := req.Options()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.manager.Start(r.Context(), refs, rejected, opts)
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, run)
}

// StopScrape handles DELETE /api/v1/scrape/current
func (h *Handler) StopScrape(w http.ResponseWriter, r *http.Request) {
	h.manager.Stop()
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "scrape run stopped",
	})
}

// Status handles GET /api/v1/scrape/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	current := h.manager.Current()
	if current == nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "idle",
		})
		return
	}
	respondJSON(w, http.StatusOK, current)
}

// ListRuns handles GET /api/v1/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.manager.History(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, ok := h.manager.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, ErrRunNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// Export handles GET /api/v1/runs/{id}/export?format=json|csv|xlsx
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.manager.Report(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	// buffer so an encoding failure can still become a proper error response
	var buf bytes.Buffer
	if err := WriteReport(&buf, format, report); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", FileName(format, report.ScrapedAt)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
