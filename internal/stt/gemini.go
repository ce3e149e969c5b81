package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// GeminiProvider implements STT using the Gemini generateContent API
type GeminiProvider struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

// NewGeminiProvider creates a new Gemini STT provider
func NewGeminiProvider(apiKey, url string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:     apiKey,
		url:        url,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Recognize sends base64 audio inline with the instruction prompt
func (p *GeminiProvider) Recognize(ctx context.Context, in Request) (*Result, error) {
	startTime := time.Now()
	const op = "gemini recognize"

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: in.Prompt},
				{InlineData: &geminiInlineData{
					MimeType: in.MimeType,
					Data:     base64.StdEncoding.EncodeToString(in.Audio),
				}},
			},
		}},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// The key travels in a header; *url.Error messages include the URL
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Printf("[Gemini STT] Sending %d bytes (%s)", len(in.Audio), in.MimeType)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, networkError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to read response body: %w", err))
	}
	log.Printf("[Gemini STT] Response preview: %s", preview(body))

	var gr geminiResponse
	parseErr := json.Unmarshal(body, &gr)

	if resp.StatusCode != http.StatusOK {
		if parseErr == nil && gr.Error != nil {
			return nil, providerError(op, "Gemini API error %d (%s): %s", gr.Error.Code, gr.Error.Status, gr.Error.Message)
		}
		return nil, providerError(op, "Gemini API returned status %d: %s", resp.StatusCode, preview(body))
	}
	if parseErr != nil {
		return nil, malformedError(op, fmt.Errorf("failed to parse Gemini response: %w", parseErr))
	}
	if gr.Error != nil {
		return nil, providerError(op, "Gemini API error %d: %s", gr.Error.Code, gr.Error.Message)
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		log.Printf("[Gemini STT] No candidates returned")
		return nil, ErrNoCandidates
	}

	transcript := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	log.Printf("[Gemini STT] Transcription finished: length=%d, duration=%v", len(transcript), time.Since(startTime))

	return &Result{
		Transcript:  transcript,
		Provider:    p.Name(),
		RawResponse: string(body),
	}, nil
}
