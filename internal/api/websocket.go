package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicetranscribe/internal/model"
	"voicetranscribe/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsMessage is every frame the server sends on /ws/audio
type wsMessage struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId"`
	Chunks    int                  `json:"chunks,omitempty"`
	Data      *model.Transcription `json:"data,omitempty"`
	Error     string               `json:"error,omitempty"`
	Code      string               `json:"code,omitempty"`
}

// audioWebSocket handles GET /ws/audio. Binary frames are appended as
// chunks; a text frame "finish" transcribes the session. Chunks left when
// the socket closes stay buffered and can be finished over HTTP.
func (h *Handler) audioWebSocket(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	mimeType := c.Query("mimeType")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxUploadBytes)

	log.Printf("[WebSocket] Session %s connected", sessionID)
	if err := conn.WriteJSON(wsMessage{Type: "session", SessionID: sessionID}); err != nil {
		return
	}

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WebSocket] Session %s read error: %v", sessionID, err)
			}
			return
		}

		var reply wsMessage
		switch msgType {
		case websocket.BinaryMessage:
			count, err := h.svc.AppendChunk(sessionID, payload)
			if err != nil {
				_, code := appendErrorCode(err)
				reply = wsMessage{Type: "error", SessionID: sessionID, Error: err.Error(), Code: code}
				break
			}
			reply = wsMessage{Type: "ack", SessionID: sessionID, Chunks: count}

		case websocket.TextMessage:
			if !strings.EqualFold(strings.TrimSpace(string(payload)), "finish") {
				reply = wsMessage{Type: "error", SessionID: sessionID, Error: "unknown command", Code: "UNKNOWN_COMMAND"}
				break
			}
			rec, err := h.svc.FinishSession(c.Request.Context(), sessionID, mimeType)
			switch {
			case errors.Is(err, service.ErrNoAudio):
				reply = wsMessage{Type: "error", SessionID: sessionID, Error: "no audio received for session " + sessionID, Code: "NO_AUDIO"}
			case err != nil:
				log.Printf("[WebSocket] Finish %s failed: %v", sessionID, err)
				reply = wsMessage{Type: "error", SessionID: sessionID, Error: err.Error(), Code: "TRANSCRIPTION_ERROR"}
			default:
				reply = wsMessage{Type: "transcription", SessionID: sessionID, Data: rec}
			}
		default:
			continue
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("[WebSocket] Session %s write failed: %v", sessionID, err)
			return
		}
	}
}
