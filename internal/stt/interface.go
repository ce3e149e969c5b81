package stt

import "context"

//go:generate mockgen -source=interface.go -destination=mock_provider.go -package=stt

// Provider defines the interface for speech-to-text providers
type Provider interface {
	// Recognize sends audio to the provider and returns the best transcript.
	// A provider that ran but produced nothing returns ErrNoCandidates.
	Recognize(ctx context.Context, req Request) (*Result, error)

	// Name returns the name of the provider (e.g., "gemini", "fpt")
	Name() string
}

// Request carries one recording to a provider
type Request struct {
	Audio    []byte // Raw audio bytes, encoded per provider
	MimeType string // Normalized mime type (audio/wav, audio/mp3, ...)
	Language string // BCP-47 language hint, e.g. "pt-BR"
	Prompt   string // Instruction for prompt driven providers
}
