package httptransport

import (
	"github.com/gin-gonic/gin"

	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/storage"
)

// QueueHandler 通知邮件队列的运维端点。
type QueueHandler struct {
	queue *notify.Queue
	store storage.EmailQueueRepository
}

// NewQueueHandler 创建队列处理器。
func NewQueueHandler(queue *notify.Queue, store storage.EmailQueueRepository) *QueueHandler {
	return &QueueHandler{queue: queue, store: store}
}

type queueStatusResponse struct {
	Depth   int      `json:"depth"`
	Pending []string `json:"pending"`
}

// status 返回当前队列深度与待投递邮件编号。
func (h *QueueHandler) status(c *gin.Context) {
	depth, err := h.store.QueueDepth()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	ids, err := h.store.PendingEmailIDs()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, queueStatusResponse{Depth: depth, Pending: ids})
}

type drainRequest struct {
	DeleteOnFailure bool `json:"deleteOnFailure"`
}

// drain 手动触发一轮队列投递。
func (h *QueueHandler) drain(c *gin.Context) {
	var req drainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	if err := h.queue.Drain(c.Request.Context(), req.DeleteOnFailure); err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	depth, err := h.store.QueueDepth()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, gin.H{"depth": depth})
}
