package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"foodlog"
	"foodlog/agent"
)

// Parts larger than this spill to temp files while parsing.
const multipartMemory = 8 << 20

const notifyTimeout = 5 * time.Second

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		writeFailure(w, http.StatusRequestEntityTooLarge, "File exceeds the upload limit.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "File exceeds the upload limit.")
			return
		}
		writeFailure(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "File is empty.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Failed to read upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeFailure(w, http.StatusBadRequest, "File is empty.")
		return
	}

	ownerID := s.opts.DefaultUserID
	if raw := strings.TrimSpace(r.FormValue("userId")); raw != "" {
		ownerID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || ownerID <= 0 {
			writeFailure(w, http.StatusBadRequest, "Invalid userId.")
			return
		}
	}

	up := agent.Upload{
		OwnerID:     ownerID,
		Data:        data,
		Ext:         filepath.Ext(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Notes:       r.FormValue("notes"),
	}
	slog.Info("HTTP: Upload received", "owner_id", ownerID, "filename", header.Filename, "size", len(data))

	resp, err := s.ingestor.Ingest(r.Context(), up)
	if err != nil {
		status, message := ingestFailure(err)
		writeFailure(w, status, message)
		return
	}

	s.notify(r.Context(), ownerID, resp)
	writeJSON(w, http.StatusOK, resp)
}

// ingestFailure maps a pipeline error to a status code and client message.
func ingestFailure(err error) (int, string) {
	cause := err
	state := agent.StateFailed
	var perr *agent.PipelineError
	if errors.As(err, &perr) {
		cause = perr.Err
		state = perr.State
	}

	switch {
	case errors.Is(err, foodlog.ErrValidation):
		return http.StatusBadRequest, cause.Error()
	case state == agent.StateInit && errors.Is(err, foodlog.ErrStorage):
		return http.StatusInternalServerError, "Failed to save image file: " + cause.Error()
	default:
		return http.StatusInternalServerError, "An error occurred during AI analysis: " + cause.Error()
	}
}

func (s *Server) notify(ctx context.Context, ownerID int64, resp agent.IngestResponse) {
	if s.opts.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := s.opts.Notifier.Notify(ctx, foodlog.Summary{
		LogID:      resp.LogID,
		OwnerID:    ownerID,
		Count:      resp.Count,
		Confidence: resp.Confidence,
	})
	if err != nil {
		slog.Warn("HTTP: Notification failed", "log_id", resp.LogID, "error", err)
	}
}
