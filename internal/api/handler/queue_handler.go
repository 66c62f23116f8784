package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/aqura-labs/pushrelay/internal/api/middleware"
	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/processor"
)

// QueueHandler exposes the operator controls on the notification queue:
// materialization, a manual processing pass, and retention cleanup.
type QueueHandler struct {
	materializer *processor.Materializer
	processor    *processor.Processor
	janitor      *processor.Janitor
	logger       *zap.Logger
}

func NewQueueHandler(m *processor.Materializer, p *processor.Processor, j *processor.Janitor, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{materializer: m, processor: p, janitor: j, logger: logger}
}

// materializeRequest is the notification content plus its recipient set.
// The caller has already persisted the record; this subsystem only fans it
// out to queue entries.
type materializeRequest struct {
	Title            string                  `json:"title"`
	Body             string                  `json:"body"`
	Type             domain.NotificationType `json:"type"`
	Priority         domain.Priority         `json:"priority"`
	Data             domain.PayloadData      `json:"data"`
	RecipientUserIDs []string                `json:"recipient_user_ids"`
}

// Materialize handles POST /api/v1/notifications/{id}/queue
//
// @Summary  Materialize a notification into queue entries
// @Tags     queue
// @Accept   json
// @Produce  json
// @Param    id    path      string              true  "Notification ID"
// @Param    body  body      materializeRequest  true  "Content and recipients"
// @Success  201   {object}  map[string]int
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/notifications/{id}/queue [post]
func (h *QueueHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	record := &domain.NotificationRecord{
		ID:        chi.URLParam(r, "id"),
		Title:     req.Title,
		Body:      req.Body,
		Type:      req.Type,
		Priority:  req.Priority,
		Data:      req.Data,
		CreatedAt: time.Now().UTC(),
	}

	created, err := h.materializer.Materialize(r.Context(), record, req.RecipientUserIDs)
	if err != nil {
		h.logger.Warn("materialization failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("notification_id", record.ID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int{"entries": created})
}

// Process handles POST /api/v1/queue/process
//
// @Summary  Run one queue processing pass now
// @Tags     queue
// @Produce  json
// @Success  200  {object}  map[string]int
// @Router   /api/v1/queue/process [post]
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	processed, err := h.processor.ProcessOnce(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

// Cleanup handles DELETE /api/v1/queue/entries?days=N
//
// @Summary  Delete terminal queue entries older than N days
// @Tags     queue
// @Produce  json
// @Param    days  query     int  false  "Retention window in days (default from config)"
// @Success  200   {object}  map[string]int
// @Router   /api/v1/queue/entries [delete]
func (h *QueueHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	deleted, err := h.janitor.CleanupOld(r.Context(), days)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
