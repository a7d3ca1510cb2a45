package httptransport

import (
	"strconv"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/domain"
	"bugtrack/backend/internal/health"
	"bugtrack/backend/internal/middleware"
	"bugtrack/backend/internal/monitoring"
	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/service"
	"bugtrack/backend/internal/storage"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	bugs       *service.BugService
	notes      *service.NoteService
	dispatcher *notify.Dispatcher
	store      storage.Store
	log        *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	BugService  *service.BugService
	NoteService *service.NoteService
	Dispatcher  *notify.Dispatcher
	Queue       *notify.Queue
	Store       storage.Store
	Metrics     *monitoring.Metrics
	Health      *health.Checker
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(1 * 1024 * 1024))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		bugs:       deps.BugService,
		notes:      deps.NoteService,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		log:        deps.Logger,
	}
	queueHandler := NewQueueHandler(deps.Queue, deps.Store)

	if deps.Health != nil {
		router.GET("/healthz/live", gin.WrapF(deps.Health.LiveEndpoint()))
		router.GET("/healthz/ready", gin.WrapF(deps.Health.ReadyEndpoint()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	v1 := router.Group("/v1")
	{
		bugRoutes := v1.Group("/bugs")
		{
			bugRoutes.POST("", handler.reportBug)
			bugRoutes.GET("/:id", handler.getBug)
			bugRoutes.DELETE("/:id", handler.deleteBug)

			bugRoutes.PATCH("/:id/status", handler.setStatus)
			bugRoutes.PATCH("/:id/priority", handler.setPriority)
			bugRoutes.PATCH("/:id/handler", handler.assignHandler)

			bugRoutes.POST("/:id/monitors", handler.addMonitor)
			bugRoutes.DELETE("/:id/monitors/:userId", handler.removeMonitor)

			bugRoutes.POST("/:id/relationships", handler.addRelationship)
			bugRoutes.POST("/:id/sponsorships", handler.addSponsorship)

			bugRoutes.POST("/:id/notes", handler.addNote)
			bugRoutes.GET("/:id/notes", handler.listNotes)
		}

		v1.DELETE("/relationships/:id", handler.deleteRelationship)

		noteRoutes := v1.Group("/notes")
		{
			noteRoutes.PATCH("/:id/text", handler.setNoteText)
			noteRoutes.PATCH("/:id/view-state", handler.setNoteViewState)
			noteRoutes.PATCH("/:id/time-tracking", handler.setNoteTimeTracking)
			noteRoutes.DELETE("/:id", handler.deleteNote)
		}

		queueRoutes := v1.Group("/queue")
		{
			queueRoutes.GET("", queueHandler.status)
			queueRoutes.POST("/drain", queueHandler.drain)
		}
	}

	return router
}

// flush 请求结束时把本次生成的通知交给队列投递。
func (h *Handler) flush(c *gin.Context) {
	if err := h.dispatcher.Flush(c.Request.Context()); err != nil {
		h.log.Warn("notification flush failed", zap.Error(err))
	}
}

// pathID 解析路径中的整数编号。
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		BadRequest(c, MsgInvalidID)
		return 0, false
	}
	return id, true
}

// actorID 解析 DELETE 请求上的操作者编号。
func actorID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.DefaultQuery("actor", "0"))
	if err != nil || id <= 0 {
		BadRequest(c, MsgInvalidRequest)
		return 0, false
	}
	return id, true
}

type reportBugRequest struct {
	ProjectID   int    `json:"projectId" binding:"required"`
	ReporterID  int    `json:"reporterId" binding:"required"`
	HandlerID   int    `json:"handlerId"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Severity    int    `json:"severity"`
	Priority    int    `json:"priority"`
	ViewState   int    `json:"viewState"`
	CategoryID  int    `json:"categoryId"`
}

func (h *Handler) reportBug(c *gin.Context) {
	var req reportBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	bug, err := h.bugs.Report(service.ReportBugInput{
		ProjectID:   req.ProjectID,
		ReporterID:  req.ReporterID,
		HandlerID:   req.HandlerID,
		Summary:     req.Summary,
		Description: req.Description,
		Severity:    domain.Severity(req.Severity),
		Priority:    domain.Priority(req.Priority),
		ViewState:   domain.ViewState(req.ViewState),
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	Created(c, bug)
}

func (h *Handler) getBug(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	bug, err := h.store.GetBug(id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Success(c, bug)
}

func (h *Handler) deleteBug(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	if err := h.bugs.Delete(actor, id); err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

type setStatusRequest struct {
	ActorID    int `json:"actorId" binding:"required"`
	Status     int `json:"status" binding:"required"`
	Resolution int `json:"resolution"`
}

func (h *Handler) setStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.bugs.SetStatus(req.ActorID, id, domain.BugStatus(req.Status), domain.Resolution(req.Resolution))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

type setPriorityRequest struct {
	ActorID  int `json:"actorId" binding:"required"`
	Priority int `json:"priority" binding:"required"`
}

func (h *Handler) setPriority(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.bugs.SetPriority(req.ActorID, id, domain.Priority(req.Priority)); err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

type assignHandlerRequest struct {
	ActorID   int `json:"actorId" binding:"required"`
	HandlerID int `json:"handlerId"`
}

func (h *Handler) assignHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignHandlerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.bugs.AssignHandler(req.ActorID, id, req.HandlerID); err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

type addMonitorRequest struct {
	ActorID int `json:"actorId" binding:"required"`
	UserID  int `json:"userId" binding:"required"`
}

func (h *Handler) addMonitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.bugs.Monitor(req.ActorID, id, req.UserID); err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

func (h *Handler) removeMonitor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.bugs.Unmonitor(id, userID); err != nil {
		writeServiceError(c, err)
		return
	}
	NoContent(c)
}

type addRelationshipRequest struct {
	ActorID   int `json:"actorId" binding:"required"`
	DestBugID int `json:"destBugId" binding:"required"`
	Type      int `json:"type" binding:"required"`
}

func (h *Handler) addRelationship(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.bugs.AddRelationship(req.ActorID, id, req.DestBugID, domain.RelationType(req.Type))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

func (h *Handler) deleteRelationship(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	if err := h.bugs.DeleteRelationship(actor, id); err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

type addSponsorshipRequest struct {
	UserID int `json:"userId" binding:"required"`
	Amount int `json:"amount" binding:"required"`
}

func (h *Handler) addSponsorship(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addSponsorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.bugs.Sponsor(req.UserID, id, req.Amount); err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	NoContent(c)
}

type addNoteRequest struct {
	ReporterID   int    `json:"reporterId" binding:"required"`
	Text         string `json:"text"`
	ViewState    int    `json:"viewState"`
	Type         int    `json:"type"`
	Attr         string `json:"attr"`
	TimeTracking int    `json:"timeTracking"`
}

func (h *Handler) addNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	note, err := h.notes.Add(service.AddNoteInput{
		BugID:        id,
		ReporterID:   req.ReporterID,
		Text:         req.Text,
		ViewState:    domain.ViewState(req.ViewState),
		Type:         domain.NoteType(req.Type),
		Attr:         req.Attr,
		TimeTracking: req.TimeTracking,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.flush(c)
	Created(c, note)
}

func (h *Handler) listNotes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	notes, err := h.store.ListNotes(id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	Success(c, gin.H{
		"items": notes,
		"count": len(notes),
	})
}

type setNoteTextRequest struct {
	ActorID int    `json:"actorId" binding:"required"`
	Text    string `json:"text"`
}

func (h *Handler) setNoteText(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setNoteTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.notes.SetText(req.ActorID, id, req.Text); err != nil {
		writeServiceError(c, err)
		return
	}
	NoContent(c)
}

type setNoteViewStateRequest struct {
	ActorID   int `json:"actorId" binding:"required"`
	ViewState int `json:"viewState" binding:"required"`
}

func (h *Handler) setNoteViewState(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setNoteViewStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.notes.SetViewState(req.ActorID, id, domain.ViewState(req.ViewState)); err != nil {
		writeServiceError(c, err)
		return
	}
	NoContent(c)
}

type setNoteTimeTrackingRequest struct {
	ActorID int `json:"actorId" binding:"required"`
	Minutes int `json:"minutes" binding:"required"`
}

func (h *Handler) setNoteTimeTracking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setNoteTimeTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.notes.SetTimeTracking(req.ActorID, id, req.Minutes); err != nil {
		writeServiceError(c, err)
		return
	}
	NoContent(c)
}

func (h *Handler) deleteNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	if err := h.notes.Delete(actor, id); err != nil {
		writeServiceError(c, err)
		return
	}
	NoContent(c)
}
