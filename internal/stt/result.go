package stt

// Result represents the result of a speech-to-text transcription
type Result struct {
	Transcript  string   // The transcribed text, trimmed
	Confidence  *float64 // Confidence score (0.0-1.0), nil if not provided
	Provider    string   // The provider used (e.g., "gemini", "google")
	RawResponse string   // Raw response from the provider (for debugging/logging)
}

func confidence(v float64) *float64 {
	if v <= 0 || v > 1 {
		return nil
	}
	return &v
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
