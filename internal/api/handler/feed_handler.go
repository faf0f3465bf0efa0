package handler

import (
	"net/http"

	"go.uber.org/zap"
)

// FeedTrigger is satisfied by *worker.FeedWorker.
type FeedTrigger interface {
	Trigger() error
}

// FeedHandler lets operators run a feed check outside the schedule.
type FeedHandler struct {
	trigger FeedTrigger
	logger  *zap.Logger
}

func NewFeedHandler(trigger FeedTrigger, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{trigger: trigger, logger: logger}
}

// Check handles POST /api/v1/feed/check
// 202 when a check was started, 409 when one is already running.
func (h *FeedHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger.Trigger(); err != nil {
		h.logger.Info("feed check not started", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
