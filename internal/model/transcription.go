package model

import (
	"fmt"
	"strings"
	"time"
)

// TranscriptionType records which call path produced a transcription
type TranscriptionType string

const (
	FileUpload    TranscriptionType = "FILE_UPLOAD"
	LiveRecording TranscriptionType = "LIVE_RECORDING"
)

// ParseTranscriptionType accepts either enum name in any case
func ParseTranscriptionType(s string) (TranscriptionType, error) {
	switch TranscriptionType(strings.ToUpper(strings.TrimSpace(s))) {
	case FileUpload:
		return FileUpload, nil
	case LiveRecording:
		return LiveRecording, nil
	}
	return "", fmt.Errorf("unknown transcription type %q", s)
}

// Transcription is the persisted outcome of a transcription attempt,
// successful or degraded.
type Transcription struct {
	ID                int64             `json:"id"`
	FileName          string            `json:"fileName"`
	TranscribedText   string            `json:"transcribedText"`
	Duration          float64           `json:"duration"`
	FileSize          int64             `json:"fileSize"`
	MimeType          string            `json:"mimeType"`
	CreatedAt         time.Time         `json:"createdAt"`
	TranscriptionType TranscriptionType `json:"transcriptionType"`
	Confidence        *float64          `json:"confidence"`
	Provider          string            `json:"provider,omitempty"`
	FailureKind       string            `json:"failureKind,omitempty"`
}
