package audio

import (
	"encoding/binary"
	"fmt"
)

// FallbackBytesPerSecond approximates 16 kHz, 16-bit mono PCM. Durations
// derived from it are estimates, not authoritative.
const FallbackBytesPerSecond = 32000.0

// unknownDataSize is written by streaming recorders that never go back
// to patch the header.
const unknownDataSize = 0xFFFFFFFF

// WAVInfo holds the header fields needed to compute playback duration
type WAVInfo struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Frames returns the number of sample frames declared by the header
func (w *WAVInfo) Frames() int64 {
	if w.BlockAlign == 0 || w.DataSize == unknownDataSize {
		return -1
	}
	return int64(w.DataSize) / int64(w.BlockAlign)
}

// EstimateDuration returns the playback length in seconds. It reads the
// RIFF/WAVE header when it can and otherwise falls back to
// len(data) / FallbackBytesPerSecond. It never fails.
func EstimateDuration(data []byte) float64 {
	info, err := ParseWAV(data)
	if err != nil {
		return fallbackDuration(data)
	}

	frames := info.Frames()
	if frames < 0 || info.SampleRate == 0 {
		return fallbackDuration(data)
	}
	return float64(frames) / float64(info.SampleRate)
}

func fallbackDuration(data []byte) float64 {
	return float64(len(data)) / FallbackBytesPerSecond
}

// ParseWAV walks the RIFF chunks until it has seen both "fmt " and
// "data". Chunks it does not know (LIST, fact, ...) are skipped.
func ParseWAV(data []byte) (*WAVInfo, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var info WAVInfo
	haveFmt := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, fmt.Errorf("invalid WAV file: truncated fmt chunk")
			}
			info.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			info.BlockAlign = binary.LittleEndian.Uint16(data[body+12 : body+14])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			info.DataSize = size
			return &info, nil
		}

		if size == unknownDataSize {
			break
		}
		next := int64(body) + int64(size) + int64(size&1)
		if next > int64(len(data)) {
			break
		}
		offset = int(next)
	}

	if !haveFmt {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	return nil, fmt.Errorf("invalid WAV file: missing data chunk")
}

// EncodeWAVHeader builds a canonical 44 byte PCM header for dataSize
// bytes of audio.
func EncodeWAVHeader(sampleRate uint32, channels, bitsPerSample uint16, dataSize uint32) []byte {
	blockAlign := channels * bitsPerSample / 8
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1)
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], sampleRate)
	binary.LittleEndian.PutUint32(h[28:32], sampleRate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}
