package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/mock/gomock"

	"voicetranscribe/internal/metrics"
	"voicetranscribe/internal/model"
	"voicetranscribe/internal/repository"
	"voicetranscribe/internal/service"
	"voicetranscribe/internal/storage"
	"voicetranscribe/internal/stt"
	"voicetranscribe/internal/transcribe"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testServer struct {
	router   *gin.Engine
	provider *stt.MockProvider
	repo     repository.TranscriptionRepository
	svc      *service.Service
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	p := stt.NewMockProvider(ctrl)
	p.EXPECT().Name().Return("fake").AnyTimes()

	m := metrics.NewMetrics()
	repo := repository.NewMemoryRepository()
	tr := transcribe.New(p, transcribe.Options{Timeout: time.Second, Metrics: m})
	svc := service.New(storage.NewChunkStore(), tr, repo, m)

	r := gin.New()
	r.Use(MetricsMiddleware(m))
	NewHandler(svc, m, maxUpload).RegisterRoutes(r)
	return &testServer{router: r, provider: p, repo: repo, svc: svc}
}

type part struct {
	field, fileName, contentType string
	data                         []byte
}

func multipartRequest(t *testing.T, url string, fields map[string]string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.fileName+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		pw.Write(p.data)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func decodeRecord(t *testing.T, raw json.RawMessage) model.Transcription {
	t.Helper()
	var rec model.Transcription
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode record: %v (%s)", err, raw)
	}
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1<<20)
	w, env := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !env.Success {
		t.Errorf("Expected healthy response, got %d %s", w.Code, w.Body.String())
	}
}

func TestTranscribeFileEndpoint(t *testing.T) {
	s := newTestServer(t, 1<<20)
	s.provider.EXPECT().Recognize(gomock.Any(), gomock.Any()).Return(&stt.Result{Transcript: "Hello World"}, nil)

	req := multipartRequest(t, "/api/transcriptions/transcribe", nil,
		part{"file", "hello.mp3", "audio/mpeg", []byte("fake mp3 bytes")})
	w, env := s.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rec := decodeRecord(t, env.Data)
	if rec.TranscribedText != "Hello World" || rec.FileName != "hello.mp3" || rec.MimeType != "audio/mpeg" {
		t.Errorf("Unexpected record %+v", rec)
	}
	if rec.TranscriptionType != model.FileUpload || rec.FileSize != 14 {
		t.Errorf("Unexpected type/size %s %d", rec.TranscriptionType, rec.FileSize)
	}
}

func TestTranscribeFileValidation(t *testing.T) {
	tests := []struct {
		name   string
		part   part
		status int
		code   string
	}{
		{"empty file", part{"file", "a.wav", "audio/wav", nil}, http.StatusBadRequest, "EMPTY_FILE"},
		{"not audio", part{"file", "a.txt", "text/plain", []byte("hello")}, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"wrong field", part{"upload", "a.wav", "audio/wav", []byte("x")}, http.StatusBadRequest, "MISSING_FILE"},
		{"too large", part{"file", "a.wav", "audio/wav", bytes.Repeat([]byte{1}, 2048)}, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 1024)
			w, env := s.do(multipartRequest(t, "/api/transcriptions/transcribe", nil, tt.part))
			if w.Code != tt.status || env.Code != tt.code || env.Success {
				t.Errorf("Expected %d %s, got %d %s", tt.status, tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestLiveTranscribeEndpoint(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w, env := s.do(multipartRequest(t, "/api/transcriptions/live-transcribe", nil,
		part{"audio", "blob", "audio/webm", nil}))
	if w.Code != http.StatusBadRequest || env.Code != "EMPTY_AUDIO_DATA" {
		t.Errorf("Expected EMPTY_AUDIO_DATA, got %d %s", w.Code, w.Body.String())
	}

	s.provider.EXPECT().Recognize(gomock.Any(), gomock.Any()).Return(nil, stt.ErrNoCandidates)
	w, env = s.do(multipartRequest(t, "/api/transcriptions/live-transcribe", nil,
		part{"audio", "blob", "audio/webm", []byte("webm-ish")}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rec := decodeRecord(t, env.Data)
	if rec.TranscribedText != transcribe.NoTranscriptText || rec.TranscriptionType != model.LiveRecording {
		t.Errorf("Unexpected record %+v", rec)
	}
}

func TestStreamAndFinish(t *testing.T) {
	s := newTestServer(t, 1<<20)
	s.provider.EXPECT().Recognize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			if string(req.Audio) != "part1part2" {
				t.Errorf("Unexpected reassembled audio %q", req.Audio)
			}
			return &stt.Result{Transcript: "streamed"}, nil
		})

	for i, chunk := range []string{"part1", "part2"} {
		w, env := s.do(multipartRequest(t, "/audio/stream", map[string]string{"sessionId": "abc"},
			part{"audio", "chunk", "application/octet-stream", []byte(chunk)}))
		if w.Code != http.StatusOK {
			t.Fatalf("Chunk %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
		var ack struct{ Chunks int }
		json.Unmarshal(env.Data, &ack)
		if ack.Chunks != i+1 {
			t.Errorf("Expected chunk count %d, got %d", i+1, ack.Chunks)
		}
	}

	w, env := s.do(httptest.NewRequest(http.MethodGet, "/audio/sessions/abc", nil))
	var info service.SessionInfo
	json.Unmarshal(env.Data, &info)
	if w.Code != http.StatusOK || info.Chunks != 2 || info.Bytes != 10 {
		t.Errorf("Unexpected session info %d %+v", w.Code, info)
	}

	req := httptest.NewRequest(http.MethodPost, "/audio/finish", strings.NewReader("sessionId=abc"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, env = s.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rec := decodeRecord(t, env.Data)
	if rec.TranscribedText != "streamed" || rec.FileSize != 10 || rec.MimeType != "audio/wav" {
		t.Errorf("Unexpected record %+v", rec)
	}

	req = httptest.NewRequest(http.MethodPost, "/audio/finish?sessionId=abc", nil)
	w, env = s.do(req)
	if w.Code != http.StatusBadRequest || env.Code != "NO_AUDIO" {
		t.Errorf("Expected NO_AUDIO on second finish, got %d %s", w.Code, w.Body.String())
	}
}

func TestStreamSessionTooLarge(t *testing.T) {
	s := newTestServer(t, 1<<20)
	s.svc.SetSessionLimit(8)

	w, _ := s.do(multipartRequest(t, "/audio/stream", map[string]string{"sessionId": "big"},
		part{"audio", "chunk", "", []byte("12345")}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w, env := s.do(multipartRequest(t, "/audio/stream", map[string]string{"sessionId": "big"},
		part{"audio", "chunk", "", []byte("6789")}))
	if w.Code != http.StatusRequestEntityTooLarge || env.Code != "SESSION_TOO_LARGE" {
		t.Errorf("Expected 413 SESSION_TOO_LARGE, got %d %s", w.Code, w.Body.String())
	}
}

func TestStreamValidation(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w, env := s.do(multipartRequest(t, "/audio/stream", nil, part{"audio", "chunk", "", []byte("x")}))
	if w.Code != http.StatusBadRequest || env.Code != "MISSING_SESSION_ID" {
		t.Errorf("Expected MISSING_SESSION_ID, got %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(httptest.NewRequest(http.MethodPost, "/audio/finish", nil))
	if w.Code != http.StatusBadRequest || env.Code != "MISSING_SESSION_ID" {
		t.Errorf("Expected MISSING_SESSION_ID, got %d %s", w.Code, w.Body.String())
	}
}

func seed(t *testing.T, repo repository.TranscriptionRepository) []*model.Transcription {
	t.Helper()
	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	recs := []*model.Transcription{
		{FileName: "a.wav", TranscribedText: "Hello World", TranscriptionType: model.FileUpload, CreatedAt: base},
		{FileName: "b.wav", TranscribedText: "goodbye", TranscriptionType: model.LiveRecording, CreatedAt: base.Add(24 * time.Hour)},
	}
	for _, r := range recs {
		if err := repo.Create(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return recs
}

func TestQueryEndpoints(t *testing.T) {
	s := newTestServer(t, 1<<20)
	recs := seed(t, s.repo)

	tests := []struct {
		name   string
		url    string
		status int
		count  int
		code   string
	}{
		{"list", "/api/transcriptions", http.StatusOK, 2, ""},
		{"search", "/api/transcriptions/search?query=hello", http.StatusOK, 1, ""},
		{"search miss", "/api/transcriptions/search?query=zzz", http.StatusOK, 0, ""},
		{"search missing", "/api/transcriptions/search", http.StatusBadRequest, 0, "MISSING_QUERY"},
		{"type", "/api/transcriptions/type/live_recording", http.StatusOK, 1, ""},
		{"bad type", "/api/transcriptions/type/podcast", http.StatusBadRequest, 0, "INVALID_TYPE"},
		{"range", "/api/transcriptions/range?start=2024-01-10T00:00:00Z&end=2024-01-10T23:59:59Z", http.StatusOK, 1, ""},
		{"bad range", "/api/transcriptions/range?start=yesterday", http.StatusBadRequest, 0, "INVALID_DATE_RANGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(httptest.NewRequest(http.MethodGet, tt.url, nil))
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.code != "" {
				if env.Code != tt.code {
					t.Errorf("Expected code %s, got %s", tt.code, env.Code)
				}
				return
			}
			var list []model.Transcription
			if err := json.Unmarshal(env.Data, &list); err != nil {
				t.Fatalf("decode list: %v (%s)", err, env.Data)
			}
			if len(list) != tt.count {
				t.Errorf("Expected %d records, got %d", tt.count, len(list))
			}
		})
	}

	w, env := s.do(httptest.NewRequest(http.MethodGet, "/api/transcriptions", nil))
	var list []model.Transcription
	json.Unmarshal(env.Data, &list)
	if w.Code != http.StatusOK || list[0].ID != recs[1].ID {
		t.Errorf("Expected newest first, got %+v", list)
	}
}

func TestGetAndDelete(t *testing.T) {
	s := newTestServer(t, 1<<20)
	recs := seed(t, s.repo)
	path := "/api/transcriptions/" + strconv.FormatInt(recs[0].ID, 10)

	w, env := s.do(httptest.NewRequest(http.MethodGet, path, nil))
	if w.Code != http.StatusOK || decodeRecord(t, env.Data).FileName != "a.wav" {
		t.Errorf("Unexpected get response %d %s", w.Code, w.Body.String())
	}

	w, _ = s.do(httptest.NewRequest(http.MethodDelete, path, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}

	w, env = s.do(httptest.NewRequest(http.MethodDelete, path, nil))
	if w.Code != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Errorf("Expected 404 NOT_FOUND, got %d %s", w.Code, w.Body.String())
	}

	w, _ = s.do(httptest.NewRequest(http.MethodGet, path, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w, env = s.do(httptest.NewRequest(http.MethodGet, "/api/transcriptions/abc", nil))
	if w.Code != http.StatusBadRequest || env.Code != "INVALID_ID" {
		t.Errorf("Expected INVALID_ID, got %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 1<<20)
	s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `voicetranscribe_http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`) {
		t.Errorf("Expected health request to be counted, got:\n%s", w.Body.String())
	}
}

func TestAudioWebSocket(t *testing.T) {
	s := newTestServer(t, 1<<20)
	s.provider.EXPECT().Recognize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req stt.Request) (*stt.Result, error) {
			if string(req.Audio) != "abcdef" {
				t.Errorf("Unexpected reassembled audio %q", req.Audio)
			}
			return &stt.Result{Transcript: "over the socket"}, nil
		})

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/audio?sessionId=ws-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "session" || msg.SessionID != "ws-1" {
		t.Fatalf("Expected session greeting, got %+v (%v)", msg, err)
	}

	for i, chunk := range []string{"abc", "def"} {
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
		msg = wsMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read ack: %v", err)
		}
		if msg.Type != "ack" || msg.Chunks != i+1 {
			t.Errorf("Unexpected ack %+v", msg)
		}
	}

	conn.WriteMessage(websocket.TextMessage, []byte("finish"))
	msg = wsMessage{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read transcription: %v", err)
	}
	if msg.Type != "transcription" || msg.Data == nil || msg.Data.TranscribedText != "over the socket" {
		t.Errorf("Unexpected transcription message %+v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("finish"))
	msg = wsMessage{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if msg.Type != "error" || msg.Code != "NO_AUDIO" {
		t.Errorf("Expected NO_AUDIO error, got %+v", msg)
	}
}

func TestAudioWebSocketGeneratesSessionID(t *testing.T) {
	s := newTestServer(t, 1<<20)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/audio", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msg.SessionID) != 36 {
		t.Errorf("Expected generated uuid, got %q", msg.SessionID)
	}
}
