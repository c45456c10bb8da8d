package rooms

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/echoroom/backend/internal/middleware"
	"github.com/echoroom/backend/internal/session"
	"github.com/echoroom/backend/pkg/response"
)

// CreateRequest is the body for POST /rooms.
type CreateRequest struct {
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	MaxParticipants int    `json:"max_participants"`
	AllowVideo      bool   `json:"allow_video"`
}

// Handler handles room HTTP endpoints.
type Handler struct {
	svc *session.Service
}

// NewHandler creates a room handler.
func NewHandler(svc *session.Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /rooms (host or admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	room, err := h.svc.CreateRoom(c.Request.Context(), session.CreateRoomInput{
		HostID:          userID,
		Name:            req.Name,
		Slug:            req.Slug,
		MaxParticipants: req.MaxParticipants,
		AllowVideo:      req.AllowVideo,
	})
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Created(c, room)
}

// GetByID handles GET /rooms/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	room, err := h.svc.GetRoom(c.Request.Context(), id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, room)
}

// List handles GET /rooms. An optional host_id query scopes the listing.
func (h *Handler) List(c *gin.Context) {
	var hostID *uuid.UUID
	if v := c.Query("host_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid host_id")
			return
		}
		hostID = &id
	}
	list, err := h.svc.ListRooms(c.Request.Context(), hostID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, list)
}

// Activate handles POST /rooms/:id/activate.
func (h *Handler) Activate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	room, err := h.svc.ActivateRoom(c.Request.Context(), userID, id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, room)
}

// Close handles POST /rooms/:id/close.
func (h *Handler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	room, err := h.svc.CloseRoom(c.Request.Context(), userID, id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, room)
}
