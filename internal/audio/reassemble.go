package audio

// Audio is a complete recording ready to be sent to a provider. It only
// lives inside the pipeline and is never persisted itself.
type Audio struct {
	Data     []byte
	MimeType string
	Name     string
}

// Reassemble concatenates chunks in order. MimeType is the declared type
// when usable, else whatever can be sniffed from the bytes, else empty.
func Reassemble(chunks [][]byte, declaredMime, displayName string) *Audio {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}

	return &Audio{
		Data:     data,
		MimeType: ResolveMime(data, declaredMime),
		Name:     displayName,
	}
}

// Size returns the exact byte length sent to the provider
func (a *Audio) Size() int64 {
	return int64(len(a.Data))
}
