package handler

import (
	"context"
	"net/http"

	"boxtrack/internal/dto"
	"boxtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// QueueStats reports outbox queue depths.
type QueueStats interface {
	Pending(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context) (int64, error)
}

type SyncHandler struct {
	svc   service.ProductService
	queue QueueStats
}

func NewSyncHandler(svc service.ProductService, queue QueueStats) *SyncHandler {
	return &SyncHandler{svc: svc, queue: queue}
}

// Force godoc
// @Summary Sync a store with the remote store now
// @Tags sync
// @Produce json
// @Success 200 {object} dto.SyncStatusResponse
// @Router /v1/stores/{store}/sync [post]
func (h *SyncHandler) Force(c *gin.Context) {
	store := c.Param("store")
	if err := h.svc.SyncNow(c.Request.Context(), store); err != nil {
		respondError(c, err)
		return
	}
	h.Status(c)
}

func (h *SyncHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.svc.SyncStatus(ctx, c.Param("store"))
	if err != nil {
		respondError(c, err)
		return
	}
	if h.queue != nil {
		var qerr error
		if resp.QueuedWrites, qerr = h.queue.Pending(ctx); qerr != nil {
			log.Warn().Err(qerr).Msg("sync status: queue length unavailable")
		}
		if resp.DeadLetters, qerr = h.queue.DeadLetters(ctx); qerr != nil {
			log.Warn().Err(qerr).Msg("sync status: DLQ length unavailable")
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SyncHandler) RetryFailed(c *gin.Context) {
	n, err := h.svc.RetryFailed(c.Request.Context(), c.Param("store"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RetryFailedResponse{Requeued: n})
}
