package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicetranscribe/internal/service"
	"voicetranscribe/internal/utils"
)

// receiveChunk handles POST /audio/stream (multipart audio + sessionId)
func (h *Handler) receiveChunk(c *gin.Context) {
	chunk, _, _, ok := h.readUpload(c, "audio")
	if !ok {
		return
	}

	sessionID := c.PostForm("sessionId")
	if sessionID == "" {
		utils.ErrorCode(c, http.StatusBadRequest, "sessionId is required", "MISSING_SESSION_ID")
		return
	}

	count, err := h.svc.AppendChunk(sessionID, chunk)
	if err != nil {
		status, code := appendErrorCode(err)
		utils.ErrorCode(c, status, err.Error(), code)
		return
	}

	utils.Success(c, gin.H{
		"message":   "chunk received",
		"sessionId": sessionID,
		"chunks":    count,
	})
}

// finishSession handles POST /audio/finish (sessionId, optional mimeType)
func (h *Handler) finishSession(c *gin.Context) {
	sessionID := formOrQuery(c, "sessionId")
	if sessionID == "" {
		utils.ErrorCode(c, http.StatusBadRequest, "sessionId is required", "MISSING_SESSION_ID")
		return
	}

	rec, err := h.svc.FinishSession(c.Request.Context(), sessionID, formOrQuery(c, "mimeType"))
	switch {
	case errors.Is(err, service.ErrNoAudio):
		utils.ErrorCode(c, http.StatusBadRequest, "no audio received for session "+sessionID, "NO_AUDIO")
		return
	case err != nil:
		log.Printf("[Session] Finish %s failed: %v", sessionID, err)
		utils.ErrorCode(c, http.StatusInternalServerError, "failed to process transcription: "+err.Error(), "TRANSCRIPTION_ERROR")
		return
	}
	utils.Success(c, rec)
}

// getSession handles GET /audio/sessions/:sessionId
func (h *Handler) getSession(c *gin.Context) {
	info, err := h.svc.Session(c.Param("sessionId"))
	if err != nil {
		utils.ErrorCode(c, http.StatusBadRequest, err.Error(), "MISSING_SESSION_ID")
		return
	}
	utils.Success(c, info)
}

func appendErrorCode(err error) (int, string) {
	if errors.Is(err, service.ErrSessionTooLarge) {
		return http.StatusRequestEntityTooLarge, "SESSION_TOO_LARGE"
	}
	return http.StatusBadRequest, "MISSING_SESSION_ID"
}

func formOrQuery(c *gin.Context, key string) string {
	if v := c.PostForm(key); v != "" {
		return v
	}
	return c.Query(key)
}
