package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"voicetranscribe/internal/audio"
	"voicetranscribe/internal/metrics"
	"voicetranscribe/internal/model"
	"voicetranscribe/internal/repository"
	"voicetranscribe/internal/storage"
	"voicetranscribe/internal/transcribe"
)

const unknownValue = "unknown"

var (
	// ErrEmptyAudio is returned when a single-shot request carries no bytes
	ErrEmptyAudio = errors.New("audio data is empty")

	// ErrMissingSession is returned when a session key is blank
	ErrMissingSession = errors.New("session id is required")

	// ErrNoAudio is returned by FinishSession when nothing was buffered
	ErrNoAudio = errors.New("no audio buffered for session")

	// ErrSessionTooLarge is returned when a chunk would push a session
	// past its byte limit. The chunk is not stored.
	ErrSessionTooLarge = errors.New("session exceeds buffered size limit")
)

// SessionInfo describes what is currently buffered for a session
type SessionInfo struct {
	SessionID string `json:"sessionId"`
	Chunks    int    `json:"chunks"`
	Bytes     int    `json:"bytes"`
}

// Service turns uploads and finished chunk sessions into stored
// transcription records.
type Service struct {
	chunks      *storage.ChunkStore
	transcriber *transcribe.Transcriber
	repo        repository.TranscriptionRepository
	metrics     *metrics.Metrics
	now         func() time.Time

	maxSessionBytes int
}

// New creates a Service. m may be nil.
func New(chunks *storage.ChunkStore, transcriber *transcribe.Transcriber, repo repository.TranscriptionRepository, m *metrics.Metrics) *Service {
	return &Service{
		chunks:      chunks,
		transcriber: transcriber,
		repo:        repo,
		metrics:     m,
		now:         time.Now,
	}
}

// SetSessionLimit caps the bytes one session may buffer. n <= 0 removes the cap.
func (s *Service) SetSessionLimit(n int64) {
	s.maxSessionBytes = int(n)
}

// TranscribeUpload transcribes one uploaded file and stores the result
func (s *Service) TranscribeUpload(ctx context.Context, data []byte, declaredMime, originalName string) (*model.Transcription, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	fileName := orDefault(originalName, unknownValue)
	mimeType := orDefault(declaredMime, unknownValue)

	return s.transcribeAndStore(ctx, data, declaredMime, fileName, mimeType, model.FileUpload)
}

// TranscribeLive transcribes a complete recording sent in one request
func (s *Service) TranscribeLive(ctx context.Context, data []byte, declaredMime string) (*model.Transcription, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	mimeType := orDefault(audio.ResolveMime(data, declaredMime), audio.DefaultMime)
	return s.transcribeAndStore(ctx, data, mimeType, s.liveFileName(), mimeType, model.LiveRecording)
}

// AppendChunk buffers one chunk for sessionKey and returns the chunk count
func (s *Service) AppendChunk(sessionKey string, chunk []byte) (int, error) {
	if sessionKey == "" {
		return 0, ErrMissingSession
	}

	n, ok := s.chunks.AppendLimited(sessionKey, chunk, s.maxSessionBytes)
	if !ok {
		log.Printf("[Session] Rejected %d byte chunk for %s: limit %d bytes", len(chunk), sessionKey, s.maxSessionBytes)
		return n, ErrSessionTooLarge
	}
	if s.metrics != nil {
		s.metrics.RecordChunk(len(chunk))
		s.metrics.SetOpenSessions(s.chunks.Sessions())
	}
	return n, nil
}

// Session reports what is buffered for sessionKey
func (s *Service) Session(sessionKey string) (*SessionInfo, error) {
	if sessionKey == "" {
		return nil, ErrMissingSession
	}
	return &SessionInfo{
		SessionID: sessionKey,
		Chunks:    s.chunks.SizeOf(sessionKey),
		Bytes:     s.chunks.BytesOf(sessionKey),
	}, nil
}

// FinishSession drains the session buffer, transcribes the reassembled
// audio and stores a LIVE_RECORDING record. The buffer is cleared before
// anything else happens, so a failed finish cannot be retried with the
// same chunks.
func (s *Service) FinishSession(ctx context.Context, sessionKey, declaredMime string) (*model.Transcription, error) {
	if sessionKey == "" {
		return nil, ErrMissingSession
	}

	chunks := s.chunks.TakeAll(sessionKey)
	if s.metrics != nil {
		s.metrics.SetOpenSessions(s.chunks.Sessions())
	}
	if len(chunks) == 0 {
		s.recordFinish("no_audio")
		return nil, ErrNoAudio
	}

	a := audio.Reassemble(chunks, declaredMime, s.liveFileName())
	mimeType := orDefault(a.MimeType, audio.DefaultMime)
	log.Printf("[Session] Finishing %s: %d chunks, %d bytes, mime=%s", sessionKey, len(chunks), a.Size(), mimeType)

	rec, err := s.transcribeAndStore(ctx, a.Data, mimeType, a.Name, mimeType, model.LiveRecording)
	if err != nil {
		s.recordFinish("error")
		return nil, err
	}
	s.recordFinish("transcribed")
	return rec, nil
}

func (s *Service) transcribeAndStore(ctx context.Context, data []byte, providerMime, fileName, mimeType string, typ model.TranscriptionType) (*model.Transcription, error) {
	res, err := s.transcriber.Transcribe(ctx, data, providerMime, fileName)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", fileName, err)
	}

	rec := &model.Transcription{
		FileName:          fileName,
		TranscribedText:   res.Text,
		Duration:          res.Duration,
		FileSize:          int64(len(data)),
		MimeType:          mimeType,
		CreatedAt:         s.now(),
		TranscriptionType: typ,
		Confidence:        res.Confidence,
		Provider:          res.Provider,
		FailureKind:       res.FailureKind(),
	}
	// The outcome is stored even if the caller went away during the provider call
	if err := s.repo.Create(context.WithoutCancel(ctx), rec); err != nil {
		return nil, fmt.Errorf("store transcription: %w", err)
	}

	log.Printf("[Session] Stored transcription %d (%s, %s)", rec.ID, typ, fileName)
	return rec, nil
}

func (s *Service) List(ctx context.Context) ([]model.Transcription, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Transcription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, term string) ([]model.Transcription, error) {
	return s.repo.Search(ctx, term)
}

func (s *Service) ListByType(ctx context.Context, typ model.TranscriptionType) ([]model.Transcription, error) {
	return s.repo.ListByType(ctx, typ)
}

// ListByDateRange returns records created in [start, end]
func (s *Service) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Transcription, error) {
	if end.Before(start) {
		start, end = end, start
	}
	return s.repo.ListByDateRange(ctx, start, end)
}

func (s *Service) liveFileName() string {
	return fmt.Sprintf("live-recording-%d.wav", s.now().UnixMilli())
}

func (s *Service) recordFinish(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordFinish(outcome)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
