package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

// refreshResponse matches the shape browser clients poll for.
type refreshResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		s.writeJSON(w, http.StatusOK, []docdex.Hit{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer", docerrors.ErrCodeInvalidQuery)
			return
		}
		limit = min(parsed, s.maxLimit)
	}

	hits, err := s.backend.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("http_search_failed", append(docerrors.LogAttrs(err), slog.String("query", query))...)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:     "search failed",
			Code:      docerrors.GetCode(err),
			Retryable: docerrors.IsRetryable(err),
		})
		return
	}
	if hits == nil {
		hits = []docdex.Hit{}
	}
	s.writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	count, err := s.backend.Reindex(r.Context())
	if err != nil {
		s.logger.Error("http_refresh_failed", docerrors.LogAttrs(err)...)
		s.writeJSON(w, http.StatusInternalServerError, refreshResponse{
			Status: "error",
			Count:  count,
			Error:  err.Error(),
		})
		return
	}
	s.logger.Info("http_refresh", slog.Int("count", count))
	s.writeJSON(w, http.StatusOK, refreshResponse{Status: "success", Count: count})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.backend.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("http_write_failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, errorResponse{Error: message, Code: code})
}
