package audio

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultMime = "audio/wav"

// NormalizeMime maps a declared content type onto the set the providers
// accept. Parameters such as ";codecs=opus" are ignored and anything
// unrecognized falls back to audio/wav.
func NormalizeMime(contentType string) string {
	switch baseType(contentType) {
	case "audio/wav", "audio/wave":
		return "audio/wav"
	case "audio/mp3", "audio/mpeg":
		return "audio/mp3"
	case "audio/flac":
		return "audio/flac"
	case "audio/ogg":
		return "audio/ogg"
	case "audio/webm":
		return "audio/webm"
	default:
		return DefaultMime
	}
}

// IsAudio reports whether a declared content type is an audio type
func IsAudio(contentType string) bool {
	return strings.HasPrefix(baseType(contentType), "audio/")
}

// ResolveMime returns declared when it is an audio type, otherwise it
// sniffs data. An empty string means nothing usable was found.
func ResolveMime(data []byte, declared string) string {
	if IsAudio(declared) {
		return declared
	}
	if len(data) == 0 {
		return ""
	}

	m := mimetype.Detect(data)
	switch {
	case m.Is("video/webm"):
		return "audio/webm"
	case m.Is("application/ogg"):
		return "audio/ogg"
	case strings.HasPrefix(m.String(), "audio/"):
		return baseType(m.String())
	}
	return ""
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
