package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// FPTProvider implements STT using FPT.AI Speech-to-Text API
type FPTProvider struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

// NewFPTProvider creates a new FPT STT provider
func NewFPTProvider(apiKey, url string) *FPTProvider {
	return &FPTProvider{
		apiKey:     apiKey,
		url:        url,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider name
func (p *FPTProvider) Name() string {
	return "fpt"
}

// FPTSTTResponse represents FPT.AI STT API response
type FPTSTTResponse struct {
	Hypotheses []struct {
		Utterance  string  `json:"utterance"`
		Confidence float64 `json:"confidence"`
	} `json:"hypotheses"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Recognize posts the raw audio bytes; FPT ignores the prompt
func (p *FPTProvider) Recognize(ctx context.Context, in Request) (*Result, error) {
	startTime := time.Now()
	const op = "fpt recognize"

	log.Printf("[FPT STT] Processing audio: size=%d bytes, mime=%s", len(in.Audio), in.MimeType)

	// Check if audio is too small (likely empty or corrupted)
	if len(in.Audio) < 1000 {
		return nil, providerError(op, "audio too small (%d bytes), may be empty or corrupted", len(in.Audio))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(in.Audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to send request to FPT.AI: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to read response body: %w", err))
	}
	log.Printf("[FPT STT] Response preview: %s", preview(body))

	if resp.StatusCode != http.StatusOK {
		return nil, providerError(op, "FPT.AI API returned status %d: %s", resp.StatusCode, preview(body))
	}

	var sttResp FPTSTTResponse
	if err := json.Unmarshal(body, &sttResp); err != nil {
		return nil, malformedError(op, fmt.Errorf("failed to parse FPT.AI response: %w", err))
	}

	if sttResp.ErrorCode != 0 {
		log.Printf("[FPT STT] API error code %d: %s", sttResp.ErrorCode, sttResp.Message)
		return nil, providerError(op, "FPT.AI API error %d: %s", sttResp.ErrorCode, sttResp.Message)
	}

	if len(sttResp.Hypotheses) == 0 {
		log.Printf("[FPT STT] No hypotheses returned")
		return nil, ErrNoCandidates
	}

	// Get the first (best) hypothesis
	hyp := sttResp.Hypotheses[0]
	transcript := strings.TrimSpace(hyp.Utterance)

	log.Printf("[FPT STT] Transcription finished: confidence=%.2f, length=%d, duration=%v",
		hyp.Confidence, len(transcript), time.Since(startTime))

	return &Result{
		Transcript:  transcript,
		Confidence:  confidence(hyp.Confidence),
		Provider:    p.Name(),
		RawResponse: string(body),
	}, nil
}
