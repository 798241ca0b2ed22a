package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type submitRequest struct {
	SubjectID string `json:"subjectId"`
	Payload   struct {
		MediaItems []model.MediaItem   `json:"mediaItems"`
		Options    model.RenderOptions `json:"options"`
	} `json:"payload"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusResponse carries the full status record plus the progress block the
// UI renders. Unknown subjects answer exists:false, never an error.
type statusResponse struct {
	Exists   bool                `json:"exists"`
	Record   *model.StatusRecord `json:"record,omitempty"`
	Progress *progressBlock      `json:"progress,omitempty"`
}

type progressBlock struct {
	Percentage int    `json:"percentage"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.submitUC.Submit(ctx, req.SubjectID, req.Payload.MediaItems, req.Payload.Options)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrJobInFlight):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			s.log.Error().Err(err).Msg("submit failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to queue render job"})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := chi.URLParam(r, "subjectID")

	rec, err := s.statusUC.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, statusResponse{Exists: false})
			return
		}
		s.log.Error().Err(err).Str("subject_id", subjectID).Msg("status lookup failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read status"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Exists: true,
		Record: rec,
		Progress: &progressBlock{
			Percentage: rec.Progress,
			Status:     string(rec.Status),
			Message:    model.StatusMessage(rec.Status),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
