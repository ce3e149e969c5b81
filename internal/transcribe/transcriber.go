package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"voicetranscribe/internal/audio"
	"voicetranscribe/internal/metrics"
	"voicetranscribe/internal/stt"
)

const (
	// ErrorMarker prefixes the text of a transcription whose provider call failed
	ErrorMarker = "transcription error: "

	// NoTranscriptText is used when the provider ran but produced nothing
	NoTranscriptText = "could not transcribe the audio"
)

// ErrNilAudio is returned when Transcribe is called without an audio buffer
var ErrNilAudio = errors.New("audio buffer is nil")

// Failure describes why a result is degraded
type Failure struct {
	Kind  stt.Kind
	Cause string
}

// Result is the normalized outcome of one transcription. A degraded
// result still carries a duration and a human readable Text.
type Result struct {
	Text       string
	Confidence *float64
	Duration   float64
	Provider   string
	Failure    *Failure
}

// Degraded reports whether the provider call failed
func (r *Result) Degraded() bool {
	return r.Failure != nil && r.Failure.Kind != stt.KindEmpty
}

// FailureKind returns the failure kind as a string, empty on success
func (r *Result) FailureKind() string {
	if r.Failure == nil {
		return ""
	}
	return string(r.Failure.Kind)
}

type Options struct {
	Language   string
	Timeout    time.Duration
	MaxRetries int
	Metrics    *metrics.Metrics
}

// Transcriber runs audio through a provider and never fails because of
// the provider: errors are folded into a degraded Result.
type Transcriber struct {
	provider   stt.Provider
	language   string
	prompt     string
	timeout    time.Duration
	maxRetries int
	metrics    *metrics.Metrics
}

// New creates a Transcriber. A zero Timeout means 60 seconds.
func New(provider stt.Provider, opts Options) *Transcriber {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Language == "" {
		opts.Language = "pt-BR"
	}
	return &Transcriber{
		provider:   provider,
		language:   opts.Language,
		prompt:     Prompt(opts.Language),
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		metrics:    opts.Metrics,
	}
}

// Prompt builds the fixed instruction sent to prompt driven providers
func Prompt(language string) string {
	return fmt.Sprintf("Transcribe this audio to text in %s. "+
		"Return only the transcribed text, without additional comments. "+
		"If the audio cannot be transcribed, return %q.", languageName(language), NoTranscriptText)
}

// Transcribe sends data to the provider and estimates its duration
// concurrently. Only a nil buffer is reported as an error.
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, declaredMime, fileName string) (*Result, error) {
	if data == nil {
		return nil, ErrNilAudio
	}

	req := stt.Request{
		Audio:    data,
		MimeType: audio.NormalizeMime(declaredMime),
		Language: t.language,
		Prompt:   t.prompt,
	}

	log.Printf("[Transcriber] Transcribing %s: size=%d bytes, mime=%s (declared %q), provider=%s",
		fileName, len(data), req.MimeType, declaredMime, t.provider.Name())

	var (
		g        errgroup.Group
		duration float64
		res      *stt.Result
	)
	g.Go(func() error {
		duration = audio.EstimateDuration(data)
		return nil
	})
	g.Go(func() error {
		var err error
		res, err = t.recognize(ctx, req)
		return err
	})
	err := g.Wait()

	result := t.normalize(res, err)
	result.Duration = duration

	if t.metrics != nil {
		t.metrics.RecordAudioDuration(duration)
	}
	if result.Failure != nil {
		log.Printf("[Transcriber] %s finished without transcript (kind=%s): %s", fileName, result.Failure.Kind, result.Failure.Cause)
	} else {
		log.Printf("[Transcriber] %s transcribed: length=%d, duration=%.2fs", fileName, len(result.Text), duration)
	}
	return result, nil
}

func (t *Transcriber) normalize(res *stt.Result, err error) *Result {
	provider := t.provider.Name()
	if res != nil && res.Provider != "" {
		provider = res.Provider
	}
	if err == nil && res == nil {
		err = &stt.Error{Kind: stt.KindMalformed, Op: provider + " recognize", Err: errors.New("provider returned no result")}
	}

	if err != nil {
		kind := stt.Classify(err)
		if kind == stt.KindEmpty {
			return &Result{
				Text:     NoTranscriptText,
				Provider: provider,
				Failure:  &Failure{Kind: stt.KindEmpty, Cause: err.Error()},
			}
		}
		return &Result{
			Text:     ErrorMarker + err.Error(),
			Provider: provider,
			Failure:  &Failure{Kind: kind, Cause: err.Error()},
		}
	}

	text := strings.TrimSpace(res.Transcript)
	if text == "" || strings.EqualFold(strings.Trim(text, `"`), NoTranscriptText) {
		return &Result{
			Text:     NoTranscriptText,
			Provider: provider,
			Failure:  &Failure{Kind: stt.KindEmpty, Cause: "provider returned an empty transcript"},
		}
	}

	return &Result{
		Text:       text,
		Confidence: res.Confidence,
		Provider:   provider,
	}
}

// recognize calls the provider, retrying network and timeout failures up
// to maxRetries times.
func (t *Transcriber) recognize(ctx context.Context, req stt.Request) (*stt.Result, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		res, err := t.call(ctx, req)
		kind := stt.Classify(err)

		if t.metrics != nil {
			t.metrics.RecordTranscription(t.provider.Name(), string(kind), time.Since(start).Seconds())
		}

		if err == nil || !stt.Retryable(kind) || attempt >= t.maxRetries || ctx.Err() != nil {
			return res, err
		}

		log.Printf("[Transcriber] Attempt %d failed (%s), retrying: %v", attempt+1, kind, err)
		if t.metrics != nil {
			t.metrics.RecordTranscriptionRetry()
		}
	}
}

// call bounds one provider call by the timeout even if the provider
// ignores its context.
func (t *Transcriber) call(ctx context.Context, req stt.Request) (*stt.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		res *stt.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := t.provider.Recognize(ctx, req)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		kind := stt.KindNetwork
		cause := fmt.Errorf("request canceled: %w", ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = stt.KindTimeout
			cause = fmt.Errorf("no response within %v: %w", t.timeout, ctx.Err())
		}
		return nil, &stt.Error{
			Kind: kind,
			Op:   t.provider.Name() + " recognize",
			Err:  cause,
		}
	}
}

func languageName(code string) string {
	switch strings.ToLower(code) {
	case "pt-br":
		return "Brazilian Portuguese"
	case "pt", "pt-pt":
		return "Portuguese"
	case "en", "en-us", "en-gb":
		return "English"
	case "es", "es-es":
		return "Spanish"
	case "vi", "vi-vn":
		return "Vietnamese"
	default:
		return code
	}
}
