// Package api is the authenticated write boundary: it turns operator
// requests into queued connector requests and exposes the archive.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qbwc-webhook-adapter/internal/archive"
	"qbwc-webhook-adapter/internal/contextkeys"
	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/models"
	"qbwc-webhook-adapter/internal/queue"
)

// LatestReader reads the most recent archived answer of a kind.
type LatestReader interface {
	Latest(kind entity.Kind) (*models.RawAnswerRecord, error)
}

// Handler contains dependencies for the write API handlers.
type Handler struct {
	Logger      *slog.Logger
	Registry    *entity.Registry
	Queue       queue.Queue
	Archive     LatestReader
	MaxReturned int
}

// NewHandler creates a new instance of the API Handler.
func NewHandler(logger *slog.Logger, registry *entity.Registry, q queue.Queue, archive LatestReader, maxReturned int) *Handler {
	return &Handler{
		Logger:      logger,
		Registry:    registry,
		Queue:       q,
		Archive:     archive,
		MaxReturned: maxReturned,
	}
}

type enqueueResponse struct {
	Status      string `json:"status"`
	Entity      string `json:"entity"`
	Operation   string `json:"operation"`
	QueueLength int    `json:"queue_length"`
}

type queueResponse struct {
	QueueLength int      `json:"queue_length"`
	Items       []string `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HandleSync queues a bounded bulk query for the entity.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	payload, err := entity.DefaultQuery(kind, h.MaxReturned)
	h.enqueue(w, r, kind, "sync", payload, err)
}

// HandleFetch queues a query for one record by its identifier.
func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	payload, err := entity.PointQuery(kind, chi.URLParam(r, "id"))
	h.enqueue(w, r, kind, "fetch", payload, err)
}

// HandleDelete queues a delete of one record.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	payload, err := entity.DeleteRequest(kind, chi.URLParam(r, "id"))
	h.enqueue(w, r, kind, "delete", payload, err)
}

// HandleCreate queues a create built from the JSON body. It expects the
// body in the context, put there by middleware.CaptureBody.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	bodyBytes, ok := r.Context().Value(contextkeys.RequestBodyKey).([]byte)
	if !ok {
		h.Logger.Error("Could not retrieve request body from context")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	var req entity.CreateRequest
	dec := json.NewDecoder(bytes.NewReader(bodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: trailing data after the JSON object"})
		return
	}
	payload, err := entity.CreateRequestXML(kind, req)
	h.enqueue(w, r, kind, "create", payload, err)
}

// HandleLatest returns the most recent archived answer for the entity.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	rec, err := h.Archive.Latest(kind)
	if errors.Is(err, archive.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no archived record for " + kind.Name})
		return
	}
	if err != nil {
		h.Logger.Error("Failed to read archive", "entity", kind.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "archive unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleQueue lists the pending queue payloads.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.Queue.List(r.Context())
	if err != nil {
		h.Logger.Error("Failed to list queue", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "queue unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, queueResponse{QueueLength: len(items), Items: items})
}

func (h *Handler) kind(w http.ResponseWriter, r *http.Request) (entity.Kind, bool) {
	name := chi.URLParam(r, "entity")
	kind, err := h.Registry.Lookup(name)
	if err != nil {
		h.Logger.Warn("Rejected request for unsupported entity", "entity", name)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return entity.Kind{}, false
	}
	return kind, true
}

// enqueue finishes a write request once its payload is built. A build
// error is the caller's fault; a queue error is ours.
func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, kind entity.Kind, op, payload string, buildErr error) {
	if buildErr != nil {
		var invalid *entity.ValidationError
		if errors.As(buildErr, &invalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error(), Field: invalid.Field})
			return
		}
		h.Logger.Error("Failed to build request", "entity", kind.Name, "operation", op, "error", buildErr)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not build request"})
		return
	}

	logger := h.Logger.With("entity", kind.Name, "operation", op, "request_id", r.Context().Value(contextkeys.RequestIDKey))
	if err := h.Queue.Enqueue(r.Context(), payload); err != nil {
		logger.Error("Failed to enqueue request", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "queue unavailable"})
		return
	}
	n, err := h.Queue.Len(r.Context())
	if err != nil {
		// The request is queued; only the count is missing.
		logger.Warn("Failed to read queue length", "error", err)
	}
	logger.Info("Request queued for the connector", "queue_length", n)
	writeJSON(w, http.StatusAccepted, enqueueResponse{Status: "queued", Entity: kind.Name, Operation: op, QueueLength: n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
