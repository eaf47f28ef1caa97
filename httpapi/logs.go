package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"foodlog/record"
)

// logResponse is a record together with its ingredient rows.
type logResponse struct {
	ID          int64                    `json:"id"`
	UserID      int64                    `json:"userId"`
	ImagePath   string                   `json:"imagePath"`
	Confidence  *int                     `json:"confidence"`
	CreatedAt   time.Time                `json:"createdAt"`
	Ingredients []record.IngredientEntry `json:"ingredients"`
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rec, err := s.records.GetLog(r.Context(), id)
	if errors.Is(err, record.ErrNotFound) {
		writeFailure(w, http.StatusNotFound, "FoodLog not found for id: "+strconv.FormatInt(id, 10))
		return
	}
	if err != nil {
		slog.Error("HTTP: Failed to load log", "log_id", id, "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := s.withIngredients(r, rec)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listLogsByUser(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	s.listLogs(w, r, ownerID)
}

func (s *Server) listLogsByQuery(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || ownerID <= 0 {
		writeFailure(w, http.StatusBadRequest, "Invalid userId.")
		return
	}
	s.listLogs(w, r, ownerID)
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request, ownerID int64) {
	recs, err := s.records.ListLogsByOwner(r.Context(), ownerID)
	if err != nil {
		slog.Error("HTTP: Failed to list logs", "owner_id", ownerID, "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]logResponse, 0, len(recs))
	for _, rec := range recs {
		resp, err := s.withIngredients(r, rec)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := s.records.DeleteLog(r.Context(), id)
	if err != nil {
		slog.Error("HTTP: Failed to delete log", "log_id", id, "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeFailure(w, http.StatusNotFound, "FoodLog not found for id: "+strconv.FormatInt(id, 10))
		return
	}
	slog.Info("HTTP: Log deleted", "log_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) withIngredients(r *http.Request, rec record.IngestionRecord) (logResponse, error) {
	ingredients, err := s.records.ListIngredients(r.Context(), rec.ID)
	if err != nil {
		return logResponse{}, err
	}
	if ingredients == nil {
		ingredients = []record.IngredientEntry{}
	}
	return logResponse{
		ID:          rec.ID,
		UserID:      rec.OwnerID,
		ImagePath:   rec.MediaRef,
		Confidence:  rec.Confidence,
		CreatedAt:   rec.CreatedAt,
		Ingredients: ingredients,
	}, nil
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, "Invalid "+param+".")
		return 0, false
	}
	return id, true
}
