package guests

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/echoroom/backend/internal/middleware"
	"github.com/echoroom/backend/internal/session"
	"github.com/echoroom/backend/pkg/response"
)

// InviteRequest is the body for POST /rooms/:id/guests.
type InviteRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email"`
	TokenHours  int    `json:"token_hours"`
}

// JoinRequest is the body for POST /rooms/:id/join.
type JoinRequest struct {
	Token string `json:"token" binding:"required"`
}

// Handler handles guest access HTTP endpoints.
type Handler struct {
	svc *session.Service
}

// NewHandler creates a guest handler.
func NewHandler(svc *session.Service) *Handler {
	return &Handler{svc: svc}
}

// Invite handles POST /rooms/:id/guests.
func (h *Handler) Invite(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.svc.InviteGuest(c.Request.Context(), session.InviteGuestInput{
		ActorID:     userID,
		RoomID:      roomID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		TokenHours:  req.TokenHours,
	})
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Created(c, result)
}

// ListByRoom handles GET /rooms/:id/guests.
func (h *Handler) ListByRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.svc.ListGuests(c.Request.Context(), userID, roomID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, list)
}

// Join handles POST /rooms/:id/join. It is unauthenticated; the guest proves
// identity with the invite token.
func (h *Handler) Join(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	guest, err := h.svc.ValidateGuestToken(c.Request.Context(), roomID, req.Token)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, guest)
}

// Leave handles POST /guests/:id/leave. The guest proves identity with the
// invite token rather than a JWT.
func (h *Handler) Leave(c *gin.Context) {
	guestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid guest id")
		return
	}

	guest, err := h.svc.LeaveGuest(c.Request.Context(), guestID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, guest)
}

// Kick handles POST /guests/:id/kick (room host or admin).
func (h *Handler) Kick(c *gin.Context) {
	guestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid guest id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	guest, err := h.svc.KickGuest(c.Request.Context(), userID, guestID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, guest)
}
