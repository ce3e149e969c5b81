package stt

import (
	"fmt"
	"log"

	"voicetranscribe/internal/config"
)

// CreateProvider creates an STT provider based on the configured name
func CreateProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Transcription.Provider {
	case "", "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		log.Printf("[STT Factory] Creating Gemini STT provider")
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.URL), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		log.Printf("[STT Factory] Creating OpenAI STT provider (model: %s)", cfg.OpenAI.Model)
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, ""), nil
	case "fpt":
		if cfg.FPT.APIKey == "" {
			return nil, fmt.Errorf("FPT_AI_API_KEY is required for the fpt provider")
		}
		log.Printf("[STT Factory] Creating FPT STT provider")
		return NewFPTProvider(cfg.FPT.APIKey, cfg.FPT.URL), nil
	case "google":
		return createGoogleProvider(cfg.Google)
	default:
		return nil, fmt.Errorf("unsupported STT provider: %s. Supported: gemini, openai, fpt, google", cfg.Transcription.Provider)
	}
}

// createGoogleProvider creates a Google STT provider. The project id is
// optional when an API key is used.
func createGoogleProvider(g config.Google) (Provider, error) {
	if !isGoogleAPIKey(g.KeyFile) && g.ProjectID == "" {
		return nil, fmt.Errorf("GOOGLE_STT_PROJECT_ID environment variable is required when using service account")
	}

	if isGoogleAPIKey(g.KeyFile) {
		log.Printf("[STT Factory] Creating Google STT provider with API key")
	} else {
		log.Printf("[STT Factory] Creating Google STT provider with project: %s", g.ProjectID)
	}
	return NewGoogleProvider(g.ProjectID, g.KeyFile)
}
