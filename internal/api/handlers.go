package api

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voicetranscribe/internal/audio"
	"voicetranscribe/internal/metrics"
	"voicetranscribe/internal/model"
	"voicetranscribe/internal/repository"
	"voicetranscribe/internal/service"
	"voicetranscribe/internal/utils"
)

// multipartOverhead is allowed on top of the upload limit for form
// boundaries and the other fields
const multipartOverhead = 1 << 20

type Handler struct {
	svc            *service.Service
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

func NewHandler(svc *service.Service, m *metrics.Metrics, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, metrics: m, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Health check
	r.GET("/health", h.healthCheck)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	transcriptions := r.Group("/api/transcriptions")
	{
		transcriptions.POST("/transcribe", h.transcribeFile)
		transcriptions.POST("/live-transcribe", h.liveTranscribe)
		transcriptions.GET("", h.listTranscriptions)
		transcriptions.GET("/search", h.searchTranscriptions)
		transcriptions.GET("/type/:type", h.listByType)
		transcriptions.GET("/range", h.listByDateRange)
		transcriptions.GET("/:id", h.getTranscription)
		transcriptions.DELETE("/:id", h.deleteTranscription)
	}

	stream := r.Group("/audio")
	{
		stream.POST("/stream", h.receiveChunk)
		stream.POST("/finish", h.finishSession)
		stream.GET("/sessions/:sessionId", h.getSession)
	}

	r.GET("/ws/audio", h.audioWebSocket)
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "voicetranscribe",
	})
}

// transcribeFile handles POST /api/transcriptions/transcribe
func (h *Handler) transcribeFile(c *gin.Context) {
	data, contentType, fileName, ok := h.readUpload(c, "file")
	if !ok {
		return
	}
	if len(data) == 0 {
		utils.ErrorCode(c, http.StatusBadRequest, "file cannot be empty", "EMPTY_FILE")
		return
	}
	if !audio.IsAudio(contentType) {
		utils.ErrorCode(c, http.StatusBadRequest,
			"unsupported file type, use audio files (.wav, .mp3, .flac, .ogg)", "UNSUPPORTED_FILE_TYPE")
		return
	}

	rec, err := h.svc.TranscribeUpload(c.Request.Context(), data, contentType, fileName)
	if err != nil {
		log.Printf("[Upload] Transcription of %s failed: %v", fileName, err)
		utils.ErrorCode(c, http.StatusInternalServerError, "failed to process transcription: "+err.Error(), "TRANSCRIPTION_ERROR")
		return
	}
	utils.Success(c, rec)
}

// liveTranscribe handles POST /api/transcriptions/live-transcribe
func (h *Handler) liveTranscribe(c *gin.Context) {
	data, contentType, _, ok := h.readUpload(c, "audio")
	if !ok {
		return
	}
	if len(data) == 0 {
		utils.ErrorCode(c, http.StatusBadRequest, "audio data cannot be empty", "EMPTY_AUDIO_DATA")
		return
	}

	rec, err := h.svc.TranscribeLive(c.Request.Context(), data, contentType)
	if err != nil {
		log.Printf("[Live] Transcription failed: %v", err)
		utils.ErrorCode(c, http.StatusInternalServerError, "failed to process live transcription: "+err.Error(), "LIVE_TRANSCRIPTION_ERROR")
		return
	}
	utils.Success(c, rec)
}

func (h *Handler) listTranscriptions(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	h.respondList(c, list, err)
}

func (h *Handler) getTranscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.ErrorCode(c, http.StatusNotFound, "transcription not found", "NOT_FOUND")
		return
	}
	if err != nil {
		log.Printf("Error getting transcription %d: %v", id, err)
		utils.ErrorCode(c, http.StatusInternalServerError, "failed to retrieve transcription", "DATABASE_ERROR")
		return
	}
	utils.Success(c, rec)
}

func (h *Handler) deleteTranscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := h.svc.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.ErrorCode(c, http.StatusNotFound, "transcription not found", "NOT_FOUND")
		return
	}
	if err != nil {
		log.Printf("Error deleting transcription %d: %v", id, err)
		utils.ErrorCode(c, http.StatusInternalServerError, "failed to delete transcription: "+err.Error(), "DELETE_ERROR")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) searchTranscriptions(c *gin.Context) {
	query, exists := c.GetQuery("query")
	if !exists {
		utils.ErrorCode(c, http.StatusBadRequest, "query is required", "MISSING_QUERY")
		return
	}
	list, err := h.svc.Search(c.Request.Context(), query)
	h.respondList(c, list, err)
}

func (h *Handler) listByType(c *gin.Context) {
	typ, err := model.ParseTranscriptionType(c.Param("type"))
	if err != nil {
		utils.ErrorCode(c, http.StatusBadRequest, err.Error(), "INVALID_TYPE")
		return
	}
	list, err := h.svc.ListByType(c.Request.Context(), typ)
	h.respondList(c, list, err)
}

// listByDateRange handles GET /api/transcriptions/range?start=&end= (RFC3339)
func (h *Handler) listByDateRange(c *gin.Context) {
	start, errStart := time.Parse(time.RFC3339, c.Query("start"))
	end, errEnd := time.Parse(time.RFC3339, c.Query("end"))
	if errStart != nil || errEnd != nil {
		utils.ErrorCode(c, http.StatusBadRequest, "start and end must be RFC3339 timestamps", "INVALID_DATE_RANGE")
		return
	}
	list, err := h.svc.ListByDateRange(c.Request.Context(), start, end)
	h.respondList(c, list, err)
}

func (h *Handler) respondList(c *gin.Context, list []model.Transcription, err error) {
	if err != nil {
		log.Printf("Error listing transcriptions: %v", err)
		utils.ErrorCode(c, http.StatusInternalServerError, "failed to retrieve transcriptions", "DATABASE_ERROR")
		return
	}
	utils.Success(c, list)
}

// readUpload reads one multipart file field, bounded by maxUploadBytes.
// It writes the error response itself and returns ok=false on failure.
func (h *Handler) readUpload(c *gin.Context, field string) (data []byte, contentType, fileName string, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadTooLarge(c)
			return nil, "", "", false
		}
		utils.ErrorCode(c, http.StatusBadRequest, field+" is required", "MISSING_FILE")
		return nil, "", "", false
	}
	if file.Size > h.maxUploadBytes {
		h.uploadTooLarge(c)
		return nil, "", "", false
	}

	data, err = readFormFile(file)
	if err != nil {
		log.Printf("[Upload] Failed to read %s: %v", field, err)
		utils.ErrorCode(c, http.StatusBadRequest, "failed to read "+field, "INVALID_FILE")
		return nil, "", "", false
	}
	return data, file.Header.Get("Content-Type"), file.Filename, true
}

func (h *Handler) uploadTooLarge(c *gin.Context) {
	utils.ErrorCode(c, http.StatusRequestEntityTooLarge,
		"file size exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes", "FILE_TOO_LARGE")
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.ErrorCode(c, http.StatusBadRequest, "invalid id format", "INVALID_ID")
		return 0, false
	}
	return id, true
}
