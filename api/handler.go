// Package api exposes the aggregation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

// Scraper is the part of the engine the handlers need.
type Scraper interface {
	Scrape(ctx context.Context, keyword string) (*models.ScrapeResult, error)
}

// ScrapeHandler serves scrape requests one at a time, since the engine
// shares a single fetcher session between calls.
type ScrapeHandler struct {
	mu      sync.Mutex
	scraper Scraper
	logger  *utils.Logger
}

func NewScrapeHandler(s Scraper, logger *utils.Logger) *ScrapeHandler {
	return &ScrapeHandler{scraper: s, logger: logger}
}

// NewRouter wires the routes.
func NewRouter(h *ScrapeHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/scrape", h.HandleScrape).Methods(http.MethodGet)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleScrape runs one scrape for ?keyword=. A failed scrape answers 502
// so clients can tell it apart from an empty result.
func (h *ScrapeHandler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "keyword is required"})
		return
	}

	h.mu.Lock()
	result, err := h.scraper.Scrape(r.Context(), keyword)
	h.mu.Unlock()
	if err != nil {
		h.logger.Error("[api] scrape %q: %v", keyword, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "scrape failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
