package recordings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/middleware"
	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/internal/session"
	"github.com/echoroom/backend/pkg/queue"
	"github.com/echoroom/backend/pkg/response"
	"github.com/echoroom/backend/pkg/storage"
)

// CompleteRequest is the body for POST /recordings/:id/complete.
type CompleteRequest struct {
	TotalSizeBytes   *int64 `json:"total_size_bytes"`
	ParticipantCount *int   `json:"participant_count"`
}

// FailRequest is the body for POST /recordings/:id/fail.
type FailRequest struct {
	Reason string `json:"reason"`
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	svc    *session.Service
	queue  *queue.Queue
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a recording handler.
func NewHandler(svc *session.Service, q *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, queue: q, s3: s3, logger: logger}
}

// Start handles POST /rooms/:id/recording/start.
func (h *Handler) Start(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.svc.StartRecording(c.Request.Context(), userID, roomID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Created(c, result)
}

// Stop handles POST /rooms/:id/recording/stop. On success the post-capture
// pipeline job is enqueued; an enqueue failure is logged, the worker can be
// pointed at stuck uploads later.
func (h *Handler) Stop(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.svc.StopRecording(c.Request.Context(), userID, roomID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if h.queue != nil {
		enqErr := h.queue.EnqueueRecordingProcess(c.Request.Context(), queue.RecordingProcessPayload{
			RecordingID: result.Recording.ID,
			RoomID:      roomID,
			FolderName:  result.Recording.FolderName,
		})
		if enqErr != nil {
			h.logger.Error("enqueue recording processing failed",
				zap.String("recording_id", result.Recording.ID.String()), zap.Error(enqErr))
		}
	}
	response.OK(c, result)
}

// Retry handles POST /recordings/:id/retry. A failed recording is moved back
// to uploading and another processing job is enqueued.
func (h *Handler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.svc.RetryRecording(c.Request.Context(), userID, id)
	if err != nil {
		response.AppError(c, err)
		return
	}

	if h.queue != nil {
		enqErr := h.queue.EnqueueRecordingProcess(c.Request.Context(), queue.RecordingProcessPayload{
			RecordingID: rec.ID,
			RoomID:      rec.RoomID,
			FolderName:  rec.FolderName,
		})
		if enqErr != nil {
			h.logger.Error("enqueue recording processing failed",
				zap.String("recording_id", rec.ID.String()), zap.Error(enqErr))
		}
	}
	response.OK(c, rec)
}

// ListByRoom handles GET /rooms/:id/recordings.
func (h *Handler) ListByRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.svc.ListRecordings(c.Request.Context(), userID, roomID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /recordings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.svc.GetRecording(c.Request.Context(), userID, id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, rec)
}

// Complete handles POST /recordings/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.svc.CompleteRecording(c.Request.Context(), session.CompleteRecordingInput{
		ActorID:          userID,
		RecordingID:      id,
		TotalSizeBytes:   req.TotalSizeBytes,
		ParticipantCount: req.ParticipantCount,
	})
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, rec)
}

// Fail handles POST /recordings/:id/fail.
func (h *Handler) Fail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.svc.FailRecording(c.Request.Context(), session.FailRecordingInput{
		ActorID:     userID,
		RecordingID: id,
		Reason:      models.FailureReason(req.Reason),
	})
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.OK(c, rec)
}

// DownloadURL handles GET /recordings/:id/download-url?filename=...
// It returns a presigned S3 URL for one file inside the recording folder.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	filename := c.Query("filename")
	if filename == "" {
		response.BadRequest(c, "filename required")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	rec, err := h.svc.GetRecording(c.Request.Context(), userID, id)
	if err != nil {
		response.AppError(c, err)
		return
	}

	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), rec.FolderName, filename, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign failed", zap.String("recording_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
}
