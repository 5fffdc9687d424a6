package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeSTT struct {
	texts map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeSTT) TranslateAudio(_ context.Context, audioPath string) (string, error) {
	f.calls = append(f.calls, audioPath)
	if f.fail[audioPath] {
		return "", errors.New("boom")
	}
	return f.texts[audioPath], nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.NewFile(0, os.DevNull))
	return l
}

func TestTranscribe_SingleSegmentNoHeaders(t *testing.T) {
	stt := &fakeSTT{texts: map[string]string{"a.mp3": "hello world"}}
	tr := NewTranscriber(stt, false, testLogger())

	got, err := tr.Transcribe(context.Background(), []AudioSegment{{Path: "a.mp3", Index: 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Errorf("transcript = %q, want plain text without chunk headers", got)
	}
}

func TestTranscribe_MultiSegmentJoinsWithHeaders(t *testing.T) {
	stt := &fakeSTT{texts: map[string]string{
		"a.mp3": "first part",
		"b.mp3": "second part",
	}}
	tr := NewTranscriber(stt, false, testLogger())

	segments := []AudioSegment{
		{Path: "a.mp3", Index: 0},
		{Path: "b.mp3", Index: 1},
	}
	got, err := tr.Transcribe(context.Background(), segments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "--- Chunk 1 ---\nfirst part\n\n--- Chunk 2 ---\nsecond part"
	if got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}

	// Segment order must be preserved.
	if stt.calls[0] != "a.mp3" || stt.calls[1] != "b.mp3" {
		t.Errorf("segments transcribed out of order: %v", stt.calls)
	}
}

func TestTranscribe_LenientToleratesPartialFailure(t *testing.T) {
	stt := &fakeSTT{
		texts: map[string]string{"a.mp3": "ok text", "c.mp3": "tail text"},
		fail:  map[string]bool{"b.mp3": true},
	}
	tr := NewTranscriber(stt, false, testLogger())

	segments := []AudioSegment{
		{Path: "a.mp3", Index: 0},
		{Path: "b.mp3", Index: 1},
		{Path: "c.mp3", Index: 2},
	}
	got, err := tr.Transcribe(context.Background(), segments)
	if err != nil {
		t.Fatalf("lenient transcription should not fail on one bad segment: %v", err)
	}

	// The failed segment keeps its header slot with empty text.
	if !strings.Contains(got, "--- Chunk 2 ---\n\n") {
		t.Errorf("expected empty chunk 2 slot in %q", got)
	}
	if !strings.Contains(got, "ok text") || !strings.Contains(got, "tail text") {
		t.Errorf("expected surviving chunks in %q", got)
	}
}

func TestTranscribe_StrictFailsFast(t *testing.T) {
	stt := &fakeSTT{fail: map[string]bool{"a.mp3": true}}
	tr := NewTranscriber(stt, true, testLogger())

	_, err := tr.Transcribe(context.Background(), []AudioSegment{
		{Path: "a.mp3", Index: 0},
		{Path: "b.mp3", Index: 1},
	})
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("error = %v, want ErrTranscriptionFailed", err)
	}
	if len(stt.calls) != 1 {
		t.Errorf("strict mode should stop after the first failure, made %d calls", len(stt.calls))
	}
}

func TestTranscribe_AllSegmentsFailedIsFatal(t *testing.T) {
	stt := &fakeSTT{fail: map[string]bool{"a.mp3": true, "b.mp3": true}}
	tr := NewTranscriber(stt, false, testLogger())

	_, err := tr.Transcribe(context.Background(), []AudioSegment{
		{Path: "a.mp3", Index: 0},
		{Path: "b.mp3", Index: 1},
	})
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("error = %v, want ErrTranscriptionFailed", err)
	}
}

func TestWhisperClient_TranslateAudio(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(audioPath, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/translations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		json.NewEncoder(w).Encode(map[string]string{"text": "transcribed text"})
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL, "test-key", "whisper-1", testLogger())
	got, err := client.TranslateAudio(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "transcribed text" {
		t.Errorf("text = %q, want %q", got, "transcribed text")
	}
	if gotModel != "whisper-1" {
		t.Errorf("model field = %q, want whisper-1", gotModel)
	}
}

func TestWhisperClient_RetriesTransientErrors(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(audioPath, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "eventually fine"})
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL, "test-key", "whisper-1", testLogger())
	got, err := client.TranslateAudio(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if got != "eventually fine" {
		t.Errorf("text = %q", got)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWhisperClient_BadRequestIsPermanent(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(audioPath, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unsupported format"}`)
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL, "test-key", "whisper-1", testLogger())
	if _, err := client.TranslateAudio(context.Background(), audioPath); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if attempts != 1 {
		t.Errorf("400 must not be retried, got %d attempts", attempts)
	}
}
