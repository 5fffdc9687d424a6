package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"vidsum-backend/internal/models"
)

type memVideos struct {
	byID map[string]*models.Video
}

func newMemVideos() *memVideos { return &memVideos{byID: map[string]*models.Video{}} }

func (m *memVideos) Get(_ context.Context, videoID string) (*models.Video, error) {
	v, ok := m.byID[videoID]
	if !ok {
		return nil, nil
	}
	v.AccessCount++
	return v, nil
}

func (m *memVideos) Upsert(_ context.Context, videoID, title, author string, lengthSeconds int, thumbnailURL string) (*models.Video, error) {
	v, ok := m.byID[videoID]
	if !ok {
		v = &models.Video{ID: primitive.NewObjectID(), VideoID: videoID, FirstProcessed: time.Now()}
		m.byID[videoID] = v
	}
	v.Title = title
	v.Author = author
	v.LengthSeconds = lengthSeconds
	v.ThumbnailURL = thumbnailURL
	return v, nil
}

type memTranscripts struct {
	byKey map[string]*models.Transcript
}

func newMemTranscripts() *memTranscripts {
	return &memTranscripts{byKey: map[string]*models.Transcript{}}
}

func (m *memTranscripts) Get(_ context.Context, videoID, language string) (*models.Transcript, error) {
	t, ok := m.byKey[videoID+"/"+language]
	if !ok {
		return nil, nil
	}
	t.AccessCount++
	return t, nil
}

func (m *memTranscripts) Put(_ context.Context, videoID, language, text string) (*models.Transcript, error) {
	key := videoID + "/" + language
	t, ok := m.byKey[key]
	if !ok {
		t = &models.Transcript{ID: primitive.NewObjectID(), VideoID: videoID, Language: language, CreatedAt: time.Now()}
		m.byKey[key] = t
	}
	t.Text = text
	t.CharCount = len(text)
	return t, nil
}

type memSummaries struct {
	byKey map[string]*models.Summary
}

func newMemSummaries() *memSummaries { return &memSummaries{byKey: map[string]*models.Summary{}} }

func (m *memSummaries) Get(_ context.Context, videoID, language string) (*models.Summary, error) {
	s, ok := m.byKey[videoID+"/"+language]
	if !ok {
		return nil, nil
	}
	s.AccessCount++
	return s, nil
}

func (m *memSummaries) Put(_ context.Context, videoID, language, text, ownerUserID string) (*models.Summary, error) {
	key := videoID + "/" + language
	s, ok := m.byKey[key]
	if !ok {
		s = &models.Summary{ID: primitive.NewObjectID(), VideoID: videoID, Language: language, CreatedAt: time.Now()}
		m.byKey[key] = s
	}
	s.Text = text
	if s.OwnerUserID == "" {
		s.OwnerUserID = ownerUserID
	}
	return s, nil
}

type memTranslations struct {
	byKey map[string]*models.Translation
}

func newMemTranslations() *memTranslations {
	return &memTranslations{byKey: map[string]*models.Translation{}}
}

func (m *memTranslations) GetByTranscript(_ context.Context, transcriptID primitive.ObjectID, language string) (*models.Translation, error) {
	t, ok := m.byKey[transcriptID.Hex()+"/"+language]
	if !ok {
		return nil, nil
	}
	t.AccessCount++
	return t, nil
}

func (m *memTranslations) Put(_ context.Context, transcriptID primitive.ObjectID, language, text string) (*models.Translation, error) {
	key := transcriptID.Hex() + "/" + language
	t, ok := m.byKey[key]
	if !ok {
		t = &models.Translation{ID: primitive.NewObjectID(), TranscriptID: transcriptID, Language: language, CreatedAt: time.Now()}
		m.byKey[key] = t
	}
	t.Text = text
	return t, nil
}

type fakeAcquirer struct {
	calls int
	err   error
}

func (f *fakeAcquirer) Acquire(_ context.Context, videoID, _ string, _ int) (*Acquisition, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Acquisition{
		Metadata: VideoMetadata{VideoID: videoID, Title: "Test Lecture", Author: "Test Channel", LengthSeconds: 1200},
		Segments: []AudioSegment{{Path: "/tmp/fake.mp3", Index: 0, Duration: 1200}},
	}, nil
}

type fakeTranscriptProducer struct {
	calls int
	text  string
	err   error
}

func (f *fakeTranscriptProducer) Transcribe(_ context.Context, _ []AudioSegment) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeEngine struct {
	summarizeCalls int
	translateCalls int
	err            error
}

func (f *fakeEngine) Summarize(_ context.Context, transcript, _ string) (string, error) {
	f.summarizeCalls++
	if f.err != nil {
		return "", f.err
	}
	return "summary of: " + transcript[:min(20, len(transcript))], nil
}

func (f *fakeEngine) Translate(_ context.Context, transcript, targetLanguage string) (string, error) {
	f.translateCalls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("[%s] %s", targetLanguage, transcript[:min(20, len(transcript))]), nil
}

type pipelineFixture struct {
	pipeline     *Pipeline
	videos       *memVideos
	transcripts  *memTranscripts
	summaries    *memSummaries
	translations *memTranslations
	acquirer     *fakeAcquirer
	stt          *fakeTranscriptProducer
	engine       *fakeEngine
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		videos:       newMemVideos(),
		transcripts:  newMemTranscripts(),
		summaries:    newMemSummaries(),
		translations: newMemTranslations(),
		acquirer:     &fakeAcquirer{},
		stt:          &fakeTranscriptProducer{text: "hello world this is the lecture transcript"},
		engine:       &fakeEngine{},
	}
	f.pipeline = NewPipeline(
		f.videos, f.transcripts, f.summaries, f.translations,
		f.acquirer, f.stt, f.engine, nil, nil,
		PipelineOptions{}, testLogger(),
	)
	return f
}

const testWatchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestSummarize_EndToEnd(t *testing.T) {
	f := newPipelineFixture()

	res, err := f.pipeline.Summarize(context.Background(), testWatchURL, SummarizeOptions{OwnerUserID: "user-1"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.Cached {
		t.Error("first run reported as cached")
	}
	if res.Video == nil || res.Video.Title != "Test Lecture" {
		t.Errorf("video metadata not stored: %+v", res.Video)
	}
	if res.Transcript == nil || res.Transcript.Text == "" {
		t.Error("transcript missing from result")
	}
	if res.Summary == nil || res.Summary.Text == "" {
		t.Error("summary missing from result")
	}
	if res.Summary.OwnerUserID != "user-1" {
		t.Errorf("owner = %q, want user-1", res.Summary.OwnerUserID)
	}
	if f.acquirer.calls != 1 || f.stt.calls != 1 || f.engine.summarizeCalls != 1 {
		t.Errorf("external calls = acquire:%d stt:%d summarize:%d, want 1 each",
			f.acquirer.calls, f.stt.calls, f.engine.summarizeCalls)
	}
}

func TestSummarize_SecondCallServedFromCache(t *testing.T) {
	f := newPipelineFixture()
	ctx := context.Background()

	if _, err := f.pipeline.Summarize(ctx, testWatchURL, SummarizeOptions{OwnerUserID: "user-1"}); err != nil {
		t.Fatalf("first Summarize: %v", err)
	}
	res, err := f.pipeline.Summarize(ctx, testWatchURL, SummarizeOptions{OwnerUserID: "user-2"})
	if err != nil {
		t.Fatalf("second Summarize: %v", err)
	}
	if !res.Cached {
		t.Error("second run not served from cache")
	}
	if f.acquirer.calls != 1 || f.stt.calls != 1 || f.engine.summarizeCalls != 1 {
		t.Errorf("cached run made external calls: acquire:%d stt:%d summarize:%d",
			f.acquirer.calls, f.stt.calls, f.engine.summarizeCalls)
	}
	// First writer keeps attribution.
	if res.Summary.OwnerUserID != "user-1" {
		t.Errorf("owner = %q, want user-1", res.Summary.OwnerUserID)
	}
	if res.Summary.AccessCount < 1 {
		t.Errorf("access count = %d, want >= 1", res.Summary.AccessCount)
	}
}

func TestSummarize_ForceBypassesCache(t *testing.T) {
	f := newPipelineFixture()
	ctx := context.Background()

	if _, err := f.pipeline.Summarize(ctx, testWatchURL, SummarizeOptions{}); err != nil {
		t.Fatalf("first Summarize: %v", err)
	}
	res, err := f.pipeline.Summarize(ctx, testWatchURL, SummarizeOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Summarize: %v", err)
	}
	if res.Cached {
		t.Error("forced run reported as cached")
	}
	if f.acquirer.calls != 2 || f.engine.summarizeCalls != 2 {
		t.Errorf("forced run reused cache: acquire:%d summarize:%d", f.acquirer.calls, f.engine.summarizeCalls)
	}
}

func TestSummarize_ReusesStoredTranscript(t *testing.T) {
	f := newPipelineFixture()
	ctx := context.Background()

	f.videos.byID["dQw4w9WgXcQ"] = &models.Video{VideoID: "dQw4w9WgXcQ", Title: "Seeded"}
	if _, err := f.transcripts.Put(ctx, "dQw4w9WgXcQ", "en", "seeded transcript text"); err != nil {
		t.Fatal(err)
	}

	res, err := f.pipeline.Summarize(ctx, testWatchURL, SummarizeOptions{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if f.acquirer.calls != 0 || f.stt.calls != 0 {
		t.Errorf("acquisition ran despite stored transcript: acquire:%d stt:%d", f.acquirer.calls, f.stt.calls)
	}
	if f.engine.summarizeCalls != 1 {
		t.Errorf("summarize calls = %d, want 1", f.engine.summarizeCalls)
	}
	if res.Transcript.Text != "seeded transcript text" {
		t.Errorf("transcript = %q, want seeded text", res.Transcript.Text)
	}
}

func TestSummarize_InvalidURLBeforeExternalCalls(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.pipeline.Summarize(context.Background(), "https://example.com/watch?v=nope", SummarizeOptions{})
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("err = %v, want ErrInvalidURL", err)
	}
	if got := FailedStage(err); got != StageResolve {
		t.Errorf("failed stage = %q, want %q", got, StageResolve)
	}
	if f.acquirer.calls != 0 || f.stt.calls != 0 || f.engine.summarizeCalls != 0 {
		t.Error("external calls made for an invalid URL")
	}
}

func TestSummarize_AcquireFailureCarriesStage(t *testing.T) {
	f := newPipelineFixture()
	f.acquirer.err = fmt.Errorf("%w: stream gone", ErrDownloadFailed)

	_, err := f.pipeline.Summarize(context.Background(), testWatchURL, SummarizeOptions{})
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("err = %v, want ErrDownloadFailed", err)
	}
	if got := FailedStage(err); got != StageAcquire {
		t.Errorf("failed stage = %q, want %q", got, StageAcquire)
	}
	if f.stt.calls != 0 || f.engine.summarizeCalls != 0 {
		t.Error("later stages ran after acquire failure")
	}
}

func TestTranslate_RequiresStoredTranscript(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.pipeline.Translate(context.Background(), testWatchURL, "Spanish")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if f.engine.translateCalls != 0 || f.acquirer.calls != 0 {
		t.Error("external calls made without a stored transcript")
	}
}

func TestTranslate_EndToEndThenCached(t *testing.T) {
	f := newPipelineFixture()
	ctx := context.Background()

	if _, err := f.pipeline.Summarize(ctx, testWatchURL, SummarizeOptions{}); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	res, err := f.pipeline.Translate(ctx, testWatchURL, "Spanish")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Cached {
		t.Error("first translation reported as cached")
	}
	if res.Translation == nil || res.Translation.Language != "Spanish" {
		t.Errorf("translation = %+v", res.Translation)
	}
	if f.engine.translateCalls != 1 {
		t.Errorf("translate calls = %d, want 1", f.engine.translateCalls)
	}

	res2, err := f.pipeline.Translate(ctx, testWatchURL, "Spanish")
	if err != nil {
		t.Fatalf("second Translate: %v", err)
	}
	if !res2.Cached {
		t.Error("repeat translation not served from cache")
	}
	if f.engine.translateCalls != 1 {
		t.Errorf("translate calls after cached repeat = %d, want 1", f.engine.translateCalls)
	}

	// A different target language is a distinct cache entry.
	if _, err := f.pipeline.Translate(ctx, testWatchURL, "French"); err != nil {
		t.Fatalf("French Translate: %v", err)
	}
	if f.engine.translateCalls != 2 {
		t.Errorf("translate calls = %d, want 2", f.engine.translateCalls)
	}
}

func TestTranslate_FailureCarriesStage(t *testing.T) {
	f := newPipelineFixture()
	ctx := context.Background()

	if _, err := f.transcripts.Put(ctx, "dQw4w9WgXcQ", "en", "stored text"); err != nil {
		t.Fatal(err)
	}
	f.engine.err = fmt.Errorf("%w: model unavailable", ErrGenerationFailed)

	_, err := f.pipeline.Translate(ctx, testWatchURL, "German")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if got := FailedStage(err); got != StageTranslate {
		t.Errorf("failed stage = %q, want %q", got, StageTranslate)
	}
}
