package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/adoptsync/internal/core"
	"github.com/JonMunkholm/adoptsync/internal/importer"
)

// SessionView is the metadata of a cached dry run.
type SessionView struct {
	ID         string          `json:"id"`
	EntityType core.EntityType `json:"entityType"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	Summary    core.Summary    `json:"summary"`
	IsValid    bool            `json:"isValid"`
}

func sessionView(sess *core.ImportSession) SessionView {
	v := SessionView{
		ID:         sess.ID,
		EntityType: sess.EntityType,
		CreatedAt:  sess.CreatedAt,
		ExpiresAt:  sess.ExpiresAt,
	}
	if sess.Result != nil {
		v.Summary = sess.Result.Summary
		v.IsValid = sess.Result.IsValid
	}
	return v
}

// handleDryRun reads the multipart "file" field and returns the change plan.
// An invalid plan is still a 200: the errors are the payload.
func (s *Server) handleDryRun(w http.ResponseWriter, r *http.Request) {
	entityType, err := core.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	result, err := s.importer.DryRun(r.Context(), entityType, data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readUpload returns the bytes of the "file" form field, refusing bodies
// over the configured import size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("%w: max %d bytes", core.ErrFileTooLarge, limit)
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errNoFile
		}
		return nil, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: max %d bytes", core.ErrFileTooLarge, limit)
	}
	return data, nil
}

// handleCommit applies a cached plan. Execution failures still return the
// partial result so the client can show the failed step.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	res, err := s.importer.Commit(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		status := statusFor(err)
		var execErr *core.ExecutionError
		if res != nil && errors.As(err, &execErr) {
			writeJSON(w, status, res)
			return
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.importer.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

type extendRequest struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handleExtendSession(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil ||
		req.Minutes <= 0 || req.Minutes > int(importer.MaxExtension/time.Minute) {
		respondError(w, r, fmt.Errorf("invalid number of minutes: %d", req.Minutes), http.StatusBadRequest)
		return
	}

	sess, err := s.importer.ExtendSession(r.Context(), chi.URLParam(r, "sessionID"), time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}
