package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/stream"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	jobs    *jobs.Service
	streams *stream.Service
	billing *billing.Service
}

type createResponse struct {
	JobID  uuid.UUID    `json:"jobId"`
	Status db.JobStatus `json:"status"`
}

type historyResponse struct {
	Jobs []*jobs.Job `json:"jobs"`
}

func (h *handlers) createJob(kind db.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		p, err := decodeParams(w, r, kind)
		if err != nil {
			writeError(w, r, err)
			return
		}

		j, err := h.jobs.Create(r.Context(), userID, p)
		if err != nil {
			writeError(w, r, err)
			return
		}

		apperror.WriteData(w, http.StatusAccepted, createResponse{JobID: j.ID, Status: j.Status})
	}
}

func (h *handlers) startStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
		return
	}
	if h.streams == nil {
		apperror.WriteJSON(w, r, apperror.ErrServiceUnavailable)
		return
	}

	p, err := decodeParams(w, r, db.JobKindStream)
	if err != nil {
		writeError(w, r, err)
		return
	}

	j, err := h.streams.Start(r.Context(), userID, p.(*jobs.StreamParams))
	if err != nil {
		writeError(w, r, err)
		return
	}

	apperror.WriteData(w, http.StatusAccepted, createResponse{JobID: j.ID, Status: j.Status})
}

func (h *handlers) stopStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
		return
	}
	if h.streams == nil {
		apperror.WriteJSON(w, r, apperror.ErrServiceUnavailable)
		return
	}

	jobID, err := pathJobID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	j, err := h.streams.Stop(r.Context(), userID, jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	apperror.WriteData(w, http.StatusOK, j)
}

func (h *handlers) jobStatus(kind db.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		jobID, err := pathJobID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		j, err := h.jobs.Get(r.Context(), userID, kind, jobID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		apperror.WriteData(w, http.StatusOK, j)
	}
}

func (h *handlers) jobHistory(kind db.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				apperror.WriteJSON(w, r, apperror.Validation("limit must be a positive integer"))
				return
			}
			limit = n
		}

		list, err := h.jobs.List(r.Context(), userID, kind, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}

		apperror.WriteData(w, http.StatusOK, historyResponse{Jobs: list})
	}
}

func (h *handlers) jobFile(kind db.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}

		jobID, err := pathJobID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		out, err := h.jobs.OpenOutput(r.Context(), userID, kind, jobID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer out.Body.Close()

		w.Header().Set("Content-Type", out.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, out.Body); err != nil {
			logger.FromContext(r.Context()).Warn("output copy interrupted", "job_id", jobID.String(), "error", err)
		}
	}
}

func decodeParams(w http.ResponseWriter, r *http.Request, kind db.JobKind) (jobs.Params, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperror.Validation("request body exceeds %d bytes", maxBodyBytes)
		}
		return nil, apperror.Validation("failed to read request body")
	}
	return jobs.DecodeParams(kind, raw)
}

func pathJobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		return uuid.Nil, apperror.NotFound("job")
	}
	return id, nil
}

// writeError maps runner errors onto their API codes before rendering.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *processor.ToolNotFoundError
	var failure *processor.ToolFailureError
	var appErr *apperror.Error

	switch {
	case errors.As(err, &appErr):
	case errors.As(err, &notFound):
		err = apperror.ToolNotFound(string(notFound.Tool), err)
	case errors.As(err, &failure):
		err = apperror.Wrap(err, apperror.ErrToolFailed)
	}
	apperror.WriteJSON(w, r, err)
}
