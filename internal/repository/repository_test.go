package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"voicetranscribe/internal/model"
)

func repositories(t *testing.T) map[string]TranscriptionRepository {
	t.Helper()

	sqliteRepo, closeDB, err := NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { closeDB() })

	return map[string]TranscriptionRepository{
		"sqlite": sqliteRepo,
		"memory": NewMemoryRepository(),
	}
}

func record(text string, typ model.TranscriptionType, at time.Time) *model.Transcription {
	return &model.Transcription{
		FileName:          "clip.wav",
		TranscribedText:   text,
		Duration:          1.5,
		FileSize:          48000,
		MimeType:          "audio/wav",
		CreatedAt:         at,
		TranscriptionType: typ,
		Provider:          "gemini",
	}
}

func TestCreateAndGet(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	conf := 0.91

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec := record("olá mundo", model.FileUpload, base)
			rec.Confidence = &conf
			if err := repo.Create(ctx, rec); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if rec.ID == 0 {
				t.Fatal("Expected ID to be assigned")
			}

			degraded := record("transcription error: timeout", model.LiveRecording, base.Add(time.Second))
			degraded.FailureKind = "timeout"
			if err := repo.Create(ctx, degraded); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if degraded.ID == rec.ID {
				t.Error("Expected distinct IDs")
			}

			got, err := repo.GetByID(ctx, rec.ID)
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			if got.TranscribedText != "olá mundo" || got.FileSize != 48000 || got.TranscriptionType != model.FileUpload {
				t.Errorf("Unexpected record %+v", got)
			}
			if !got.CreatedAt.Equal(base) {
				t.Errorf("CreatedAt not preserved: got %v, want %v", got.CreatedAt, base)
			}
			if got.Confidence == nil || *got.Confidence != conf {
				t.Errorf("Expected confidence %v, got %v", conf, got.Confidence)
			}

			got, err = repo.GetByID(ctx, degraded.ID)
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			if got.Confidence != nil {
				t.Errorf("Expected nil confidence, got %v", *got.Confidence)
			}
			if got.FailureKind != "timeout" {
				t.Errorf("Expected failure kind timeout, got %q", got.FailureKind)
			}

			if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestCreateSetsCreatedAt(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			before := time.Now()
			rec := record("x", model.FileUpload, time.Time{})
			if err := repo.Create(context.Background(), rec); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if rec.CreatedAt.Before(before) {
				t.Errorf("Expected CreatedAt to be set, got %v", rec.CreatedAt)
			}
		})
	}
}

func TestListOrderingAndFilters(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inputs := []*model.Transcription{
				record("Hello World", model.FileUpload, base),
				record("say HELLO again", model.LiveRecording, base.Add(2*time.Hour)),
				record("nothing here", model.LiveRecording, base.Add(time.Hour)),
				record("100% sure_thing", model.FileUpload, base.Add(3*time.Hour)),
			}
			for _, rec := range inputs {
				if err := repo.Create(ctx, rec); err != nil {
					t.Fatalf("Create failed: %v", err)
				}
			}

			all, err := repo.ListAll(ctx)
			if err != nil {
				t.Fatalf("ListAll failed: %v", err)
			}
			wantOrder := []string{"100% sure_thing", "say HELLO again", "nothing here", "Hello World"}
			if len(all) != len(wantOrder) {
				t.Fatalf("Expected %d records, got %d", len(wantOrder), len(all))
			}
			for i, want := range wantOrder {
				if all[i].TranscribedText != want {
					t.Errorf("Position %d: got %q, want %q", i, all[i].TranscribedText, want)
				}
			}

			hits, err := repo.Search(ctx, "hello")
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(hits) != 2 || hits[0].TranscribedText != "say HELLO again" || hits[1].TranscribedText != "Hello World" {
				t.Errorf("Unexpected search hits %+v", hits)
			}

			// Wildcards are literal
			if hits, _ := repo.Search(ctx, "%"); len(hits) != 1 {
				t.Errorf("Expected 1 hit for %%, got %d", len(hits))
			}
			if hits, _ := repo.Search(ctx, "o_w"); len(hits) != 0 {
				t.Errorf("Expected no hit for o_w, got %d", len(hits))
			}
			if hits, _ := repo.Search(ctx, "zzz"); hits == nil || len(hits) != 0 {
				t.Errorf("Expected empty non-nil result, got %v", hits)
			}

			live, err := repo.ListByType(ctx, model.LiveRecording)
			if err != nil {
				t.Fatalf("ListByType failed: %v", err)
			}
			if len(live) != 2 || live[0].TranscribedText != "say HELLO again" {
				t.Errorf("Unexpected live records %+v", live)
			}

			ranged, err := repo.ListByDateRange(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
			if err != nil {
				t.Fatalf("ListByDateRange failed: %v", err)
			}
			if len(ranged) != 2 {
				t.Errorf("Expected 2 records in range (inclusive), got %d", len(ranged))
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record("bye", model.FileUpload, time.Now())
			if err := repo.Create(ctx, rec); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if err := repo.Delete(ctx, rec.ID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := repo.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound on second delete, got %v", err)
			}
			if _, err := repo.GetByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":  "plain",
		"50%":    `50\%`,
		"a_b":    `a\_b`,
		`back\s`: `back\\s`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
