package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/service"
)

// BroadcastStatus is satisfied by *service.BroadcastService.
type BroadcastStatus interface {
	LastRun() (service.RunSummary, bool)
	LockHeld(ctx context.Context) (bool, error)
}

// BroadcastHandler exposes the state of the broadcast engine.
type BroadcastHandler struct {
	svc    BroadcastStatus
	logger *zap.Logger
}

func NewBroadcastHandler(svc BroadcastStatus, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{svc: svc, logger: logger}
}

type broadcastStatusResponse struct {
	LockHeld bool                `json:"lock_held"`
	LastRun  *service.RunSummary `json:"last_run"`
}

// Status handles GET /api/v1/broadcast/status
func (h *BroadcastHandler) Status(w http.ResponseWriter, r *http.Request) {
	held, err := h.svc.LockHeld(r.Context())
	if err != nil {
		h.logger.Error("read broadcast lock", zap.Error(err))
		mapError(w, err)
		return
	}

	resp := broadcastStatusResponse{LockHeld: held}
	if last, ok := h.svc.LastRun(); ok {
		resp.LastRun = &last
	}
	respondJSON(w, http.StatusOK, resp)
}
