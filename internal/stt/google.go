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
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleScope = "https://www.googleapis.com/auth/cloud-platform"

// GoogleProvider implements STT using Google Cloud Speech-to-Text REST API
type GoogleProvider struct {
	projectID  string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	useAPIKey  bool // true if using API key, false if using service account
}

// NewGoogleProvider creates a new Google STT provider
// keyData can be either:
//   - An API key (39 characters, typically starts with "AIzaSy")
//   - A file path to a JSON key file (e.g., "./keys/google-service-account.json")
//   - A JSON string containing the service account credentials
//   - Empty, in which case application default credentials are used
func NewGoogleProvider(projectID, keyData string) (*GoogleProvider, error) {
	keyDataTrimmed := strings.TrimSpace(keyData)

	if isGoogleAPIKey(keyDataTrimmed) {
		log.Printf("[Google STT] Using API key authentication")
		return &GoogleProvider{
			projectID:  projectID,
			apiKey:     keyDataTrimmed,
			baseURL:    "https://speech.googleapis.com",
			httpClient: &http.Client{Timeout: 90 * time.Second},
			useAPIKey:  true,
		}, nil
	}

	ctx := context.Background()
	var creds *google.Credentials
	var err error

	switch {
	case keyDataTrimmed == "":
		creds, err = google.FindDefaultCredentials(ctx, googleScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w. Please set GOOGLE_STT_KEY_FILE", err)
		}
	case strings.HasPrefix(keyDataTrimmed, "{"):
		log.Printf("[Google STT] Using JSON string from environment variable")
		creds, err = google.CredentialsFromJSON(ctx, []byte(keyDataTrimmed), googleScope)
	default:
		log.Printf("[Google STT] Reading key file: %s", keyDataTrimmed)
		var jsonData []byte
		jsonData, err = os.ReadFile(keyDataTrimmed)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file '%s': %w", keyDataTrimmed, err)
		}
		creds, err = google.CredentialsFromJSON(ctx, jsonData, googleScope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials from JSON: %w", err)
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = 90 * time.Second

	return &GoogleProvider{
		projectID:  projectID,
		baseURL:    "https://speech.googleapis.com",
		httpClient: client,
	}, nil
}

func isGoogleAPIKey(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) == 39 && strings.HasPrefix(s, "AIzaSy")
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

// GoogleSTTRequest represents Google Speech-to-Text API request
type GoogleSTTRequest struct {
	Config GoogleSTTConfig `json:"config"`
	Audio  GoogleSTTAudio  `json:"audio"`
}

// GoogleSTTConfig represents recognition config
type GoogleSTTConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

// GoogleSTTAudio represents audio data
type GoogleSTTAudio struct {
	Content string `json:"content"` // Base64 encoded
}

// GoogleSTTResponse represents Google Speech-to-Text API response
type GoogleSTTResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
	Error *GoogleSTTError `json:"error,omitempty"`
}

// GoogleSTTError represents an API error
type GoogleSTTError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Recognize transcribes audio using Google Cloud Speech-to-Text REST API
func (p *GoogleProvider) Recognize(ctx context.Context, in Request) (*Result, error) {
	startTime := time.Now()
	const op = "google recognize"

	encoding, sampleRate := googleAudioConfig(in.MimeType)

	reqJSON, err := json.Marshal(GoogleSTTRequest{
		Config: GoogleSTTConfig{
			Encoding:                   encoding,
			SampleRateHertz:            sampleRate,
			LanguageCode:               in.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: GoogleSTTAudio{
			Content: base64.StdEncoding.EncodeToString(in.Audio),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/speech:recognize", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.useAPIKey {
		req.Header.Set("X-Goog-Api-Key", p.apiKey)
	} else if p.projectID != "" {
		req.Header.Set("X-Goog-User-Project", p.projectID)
	}

	log.Printf("[Google STT] Calling Google Speech-to-Text API (encoding=%s, language=%s)...", encoding, in.Language)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, networkError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("failed to read response body: %w", err))
	}
	log.Printf("[Google STT] Response preview: %s", preview(body))

	var sttResp GoogleSTTResponse
	parseErr := json.Unmarshal(body, &sttResp)

	if resp.StatusCode != http.StatusOK {
		if parseErr == nil && sttResp.Error != nil {
			return nil, providerError(op, "Google Speech-to-Text API error: %s", sttResp.Error.Message)
		}
		return nil, providerError(op, "Google Speech-to-Text API returned status %d: %s", resp.StatusCode, preview(body))
	}
	if parseErr != nil {
		return nil, malformedError(op, fmt.Errorf("failed to parse Google Speech-to-Text response: %w", parseErr))
	}
	if sttResp.Error != nil {
		return nil, providerError(op, "Google Speech-to-Text API error: %s", sttResp.Error.Message)
	}

	if len(sttResp.Results) == 0 || len(sttResp.Results[0].Alternatives) == 0 {
		log.Printf("[Google STT] No results returned")
		return nil, ErrNoCandidates
	}

	// Long audio comes back as consecutive results; join the best of each
	parts := make([]string, 0, len(sttResp.Results))
	for _, r := range sttResp.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		}
	}
	transcript := strings.TrimSpace(strings.Join(parts, " "))
	conf := sttResp.Results[0].Alternatives[0].Confidence

	log.Printf("[Google STT] Transcription finished: confidence=%.2f, length=%d, duration=%v",
		conf, len(transcript), time.Since(startTime))

	return &Result{
		Transcript:  transcript,
		Confidence:  confidence(conf),
		Provider:    p.Name(),
		RawResponse: string(body),
	}, nil
}

// googleAudioConfig determines encoding and sample rate from the mime
// type. WAV and FLAC carry their own sample rate in the header.
func googleAudioConfig(mimeType string) (string, int) {
	switch mimeType {
	case "audio/mp3":
		return "MP3", 44100
	case "audio/flac":
		return "FLAC", 0
	case "audio/ogg":
		return "OGG_OPUS", 48000
	case "audio/webm":
		return "WEBM_OPUS", 48000
	default:
		return "LINEAR16", 0
	}
}
