package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/adoptsync/internal/core"
	"github.com/JonMunkholm/adoptsync/internal/logging"
	"github.com/JonMunkholm/adoptsync/internal/store"
)

// handleExport streams an entity graph as an xlsx attachment. Per-sheet row
// counts travel in the X-Export-Stats header.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entityType, err := core.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	res, err := s.importer.Export(r.Context(), entityType, chi.URLParam(r, "entityID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	stats, err := json.Marshal(res.Stats)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(res.Size))
	w.Header().Set("X-Export-Stats", string(stats))
	if _, err := w.Write(res.Buffer); err != nil {
		logging.FromContext(r.Context()).Warn("write export", "filename", res.Filename, "error", err)
	}
}

// handleAuditLog lists audit entries, newest first. Query parameters:
// entityId, action and limit.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AuditFilter{
		EntityID: q.Get("entityId"),
		Action:   core.AuditAction(q.Get("action")),
		Limit:    parseIntParam(r, "limit", store.DefaultAuditLimit),
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	entries, err := s.importer.AuditLog(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type healthResponse struct {
	Status  string                    `json:"status"`
	Imports *core.ImportLimiterStatus `json:"imports,omitempty"`
}

// handleHealth reports whether the repository answers, plus import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.limiter != nil {
		st := s.limiter.Status()
		resp.Imports = &st
	}

	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
