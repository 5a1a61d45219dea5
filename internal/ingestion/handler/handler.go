// Package handler exposes the resource corpus over HTTP: create, fetch,
// list, and delete. Every successful write drops the local search cache and
// emits a change event so other instances drop theirs.
package handler

import (
	"encoding/json"
	"errors"
	"context"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource/events"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/logger"
)

type Handler struct {
	store       resource.Store
	publisher   *events.Publisher
	invalidator events.Invalidator
	logger      *slog.Logger
}

// New creates a Handler. pub may be nil when change events are disabled and
// inv may be nil when search caching is disabled.
func New(store resource.Store, pub *events.Publisher, inv events.Invalidator) *Handler {
	return &Handler{
		store:       store,
		publisher:   pub,
		invalidator: inv,
		logger:      slog.Default().With("component", "resource-handler"),
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req resource.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := resource.Validate(&req); err != nil {
		var validationErr *resource.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.store.Put(ctx, resource.FromRequest(&req))
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("storing resource failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "storing resource failed")
		return
	}
	h.changed(ctx, stored.ID, events.OpPut)
	log.Info("resource stored", "resource_id", stored.ID, "content_size", len(stored.Content))
	h.writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "loading resource failed", id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "listing resources failed", "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"resources": list,
		"count":     len(list),
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := h.store.Delete(ctx, id); err != nil {
		h.writeStoreError(w, r, "deleting resource failed", id, err)
		return
	}
	h.changed(ctx, id, events.OpDelete)
	w.WriteHeader(http.StatusNoContent)
}

// changed drops this instance's cache synchronously and publishes the change
// for every other instance.
func (h *Handler) changed(ctx context.Context, id string, op events.Op) {
	log := logger.FromContext(ctx)
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx); err != nil {
			log.Error("search cache not invalidated, results may be stale",
				"resource_id", id,
				"op", op,
				"error", err,
			)
		}
	}
	if err := h.publisher.Publish(ctx, id, op); err != nil {
		log.Error("change event not published, other instances may serve stale results",
			"resource_id", id,
			"error", err,
		)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, msg, id string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status == http.StatusNotFound {
		h.writeError(w, status, "resource not found")
		return
	}
	logger.FromContext(r.Context()).Error(msg, "resource_id", id, "error", err, "status_code", status)
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
