package stt

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements STT using the OpenAI audio transcription API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI STT provider. baseURL may be
// empty to use the public endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Recognize uploads the audio as a multipart file. Whisper takes an ISO
// 639-1 language so the region part of the hint is dropped.
func (p *OpenAIProvider) Recognize(ctx context.Context, in Request) (*Result, error) {
	startTime := time.Now()
	const op = "openai recognize"

	lang := in.Language
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}

	log.Printf("[OpenAI STT] Sending %d bytes (%s) to model %s", len(in.Audio), in.MimeType, p.model)
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: "audio" + fileExtension(in.MimeType),
		Reader:   bytes.NewReader(in.Audio),
		Language: strings.ToLower(lang),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, providerError(op, "OpenAI API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, providerError(op, "OpenAI request failed with status %d: %v", reqErr.HTTPStatusCode, reqErr.Err)
		}
		return nil, networkError(op, err)
	}

	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		log.Printf("[OpenAI STT] Empty transcript returned")
		return nil, ErrNoCandidates
	}

	log.Printf("[OpenAI STT] Transcription finished: length=%d, duration=%v", len(transcript), time.Since(startTime))
	return &Result{
		Transcript: transcript,
		Provider:   p.Name(),
	}, nil
}

func fileExtension(mimeType string) string {
	switch mimeType {
	case "audio/mp3":
		return ".mp3"
	case "audio/flac":
		return ".flac"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ".wav"
	}
}
