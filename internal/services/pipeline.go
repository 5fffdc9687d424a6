package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"

	"vidsum-backend/internal/models"
)

// Store boundaries the pipeline writes through. The Mongo repositories
// satisfy these; tests substitute in-memory fakes.
type VideoStore interface {
	Get(ctx context.Context, videoID string) (*models.Video, error)
	Upsert(ctx context.Context, videoID, title, author string, lengthSeconds int, thumbnailURL string) (*models.Video, error)
}

type TranscriptStore interface {
	Get(ctx context.Context, videoID, language string) (*models.Transcript, error)
	Put(ctx context.Context, videoID, language, text string) (*models.Transcript, error)
}

type SummaryStore interface {
	Get(ctx context.Context, videoID, language string) (*models.Summary, error)
	Put(ctx context.Context, videoID, language, text, ownerUserID string) (*models.Summary, error)
}

type TranslationStore interface {
	GetByTranscript(ctx context.Context, transcriptID primitive.ObjectID, language string) (*models.Translation, error)
	Put(ctx context.Context, transcriptID primitive.ObjectID, language, text string) (*models.Translation, error)
}

// Acquirer obtains transcription-ready audio segments for a video.
type Acquirer interface {
	Acquire(ctx context.Context, videoID, preferredQuality string, chunkDuration int) (*Acquisition, error)
}

// TranscriptProducer converts acquired segments into a transcript.
type TranscriptProducer interface {
	Transcribe(ctx context.Context, segments []AudioSegment) (string, error)
}

// Generator is the summarize/translate surface of the generation engine.
type Generator interface {
	Summarize(ctx context.Context, transcript, title string) (string, error)
	Translate(ctx context.Context, transcript, targetLanguage string) (string, error)
}

// CaptionSource fetches platform captions for the optional fast path.
type CaptionSource interface {
	GetCaptionTranscript(videoID string) (string, error)
}

// MetadataFetcher resolves video metadata without downloading media.
type MetadataFetcher interface {
	GetMetadata(ctx context.Context, videoID string) (VideoMetadata, error)
}

type PipelineOptions struct {
	DefaultLanguage      string
	PreferredQuality     string
	ChunkDurationSeconds int
	CaptionsFirst        bool
	StageTimeout         time.Duration
}

func (o *PipelineOptions) withDefaults() {
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = "en"
	}
	if o.PreferredQuality == "" {
		o.PreferredQuality = "highest"
	}
	if o.ChunkDurationSeconds <= 0 {
		o.ChunkDurationSeconds = 600
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = 15 * time.Minute
	}
}

// Pipeline is the orchestrator: resolve → cache check → acquire → transcribe
// → store → generate → store, with scratch cleanup on every path. Concurrent
// requests for the same video collapse onto one in-flight run.
type Pipeline struct {
	videos       VideoStore
	transcripts  TranscriptStore
	summaries    SummaryStore
	translations TranslationStore

	acquirer    Acquirer
	transcriber TranscriptProducer
	engine      Generator
	captions    CaptionSource
	metadata    MetadataFetcher

	opts  PipelineOptions
	group singleflight.Group
	log   *logrus.Logger
}

func NewPipeline(
	videos VideoStore,
	transcripts TranscriptStore,
	summaries SummaryStore,
	translations TranslationStore,
	acquirer Acquirer,
	transcriber TranscriptProducer,
	engine Generator,
	captions CaptionSource,
	metadata MetadataFetcher,
	opts PipelineOptions,
	log *logrus.Logger,
) *Pipeline {
	opts.withDefaults()
	return &Pipeline{
		videos:       videos,
		transcripts:  transcripts,
		summaries:    summaries,
		translations: translations,
		acquirer:     acquirer,
		transcriber:  transcriber,
		engine:       engine,
		captions:     captions,
		metadata:     metadata,
		opts:         opts,
		log:          log,
	}
}

type SummarizeResult struct {
	Video      *models.Video
	Transcript *models.Transcript
	Summary    *models.Summary
	Cached     bool
}

// SummarizeOptions carry the per-request knobs of a summarize run.
type SummarizeOptions struct {
	OwnerUserID string
	Quality     string
	Force       bool
}

// Summarize runs the full pipeline for a URL. When Force is unset, a cached
// summary short-circuits before any external call.
func (p *Pipeline) Summarize(ctx context.Context, url string, opts SummarizeOptions) (*SummarizeResult, error) {
	videoID, err := ResolveVideoID(url)
	if err != nil {
		return nil, stageErr(StageResolve, err)
	}

	lang := p.opts.DefaultLanguage
	key := fmt.Sprintf("summarize:%s:%s", videoID, lang)

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.summarize(ctx, videoID, lang, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SummarizeResult), nil
}

func (p *Pipeline) summarize(ctx context.Context, videoID, lang string, opts SummarizeOptions) (*SummarizeResult, error) {
	if !opts.Force {
		summary, err := p.summaries.Get(ctx, videoID, lang)
		if err != nil {
			return nil, stageErr(StageStore, err)
		}
		if summary != nil {
			video, err := p.videos.Get(ctx, videoID)
			if err != nil {
				return nil, stageErr(StageStore, err)
			}
			transcript, err := p.transcripts.Get(ctx, videoID, lang)
			if err != nil {
				return nil, stageErr(StageStore, err)
			}
			p.log.WithField("video_id", videoID).Info("summary cache hit")
			return &SummarizeResult{Video: video, Transcript: transcript, Summary: summary, Cached: true}, nil
		}
	}

	transcript, video, err := p.ensureTranscript(ctx, videoID, lang, opts.Quality, opts.Force)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancel()
	summaryText, err := p.engine.Summarize(genCtx, transcript.Text, video.Title)
	if err != nil {
		return nil, stageErr(StageSummarize, err)
	}

	summary, err := p.summaries.Put(ctx, videoID, lang, summaryText, opts.OwnerUserID)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}

	return &SummarizeResult{Video: video, Transcript: transcript, Summary: summary}, nil
}

// ensureTranscript returns the stored transcript for (videoID, lang),
// producing and storing one when missing. The video record is upserted along
// the way so every transcript has matching metadata.
func (p *Pipeline) ensureTranscript(ctx context.Context, videoID, lang, quality string, force bool) (*models.Transcript, *models.Video, error) {
	if !force {
		transcript, err := p.transcripts.Get(ctx, videoID, lang)
		if err != nil {
			return nil, nil, stageErr(StageStore, err)
		}
		if transcript != nil {
			video, err := p.videos.Get(ctx, videoID)
			if err != nil {
				return nil, nil, stageErr(StageStore, err)
			}
			if video == nil {
				video = &models.Video{VideoID: videoID}
			}
			return transcript, video, nil
		}
	}

	// Caption fast path: skip download and speech-to-text entirely when the
	// platform already has a transcript.
	if p.opts.CaptionsFirst && p.captions != nil && p.metadata != nil {
		if text, err := p.captions.GetCaptionTranscript(videoID); err == nil {
			meta, err := p.metadata.GetMetadata(ctx, videoID)
			if err != nil {
				return nil, nil, stageErr(StageAcquire, err)
			}
			return p.storeTranscript(ctx, videoID, lang, text, meta)
		}
		p.log.WithField("video_id", videoID).Debug("no captions available, falling back to audio pipeline")
	}

	if quality == "" {
		quality = p.opts.PreferredQuality
	}
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancelAcquire()
	acq, err := p.acquirer.Acquire(acquireCtx, videoID, quality, p.opts.ChunkDurationSeconds)
	if err != nil {
		return nil, nil, stageErr(StageAcquire, err)
	}
	// Scratch files never outlive the run, success or failure.
	defer acq.Cleanup()

	transcribeCtx, cancelTranscribe := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancelTranscribe()
	text, err := p.transcriber.Transcribe(transcribeCtx, acq.Segments)
	if err != nil {
		return nil, nil, stageErr(StageTranscribe, err)
	}

	return p.storeTranscript(ctx, videoID, lang, text, acq.Metadata)
}

func (p *Pipeline) storeTranscript(ctx context.Context, videoID, lang, text string, meta VideoMetadata) (*models.Transcript, *models.Video, error) {
	video, err := p.videos.Upsert(ctx, videoID, meta.Title, meta.Author, meta.LengthSeconds, meta.ThumbnailURL)
	if err != nil {
		return nil, nil, stageErr(StageStore, err)
	}

	transcript, err := p.transcripts.Put(ctx, videoID, lang, text)
	if err != nil {
		return nil, nil, stageErr(StageStore, err)
	}
	return transcript, video, nil
}

type TranslateResult struct {
	Video       *models.Video
	Translation *models.Translation
	Cached      bool
}

// Translate renders the stored transcript of a video into targetLanguage.
// It requires a prior transcript on record: translating a never-processed
// video fails ErrNotFound rather than kicking off acquisition.
func (p *Pipeline) Translate(ctx context.Context, url, targetLanguage string) (*TranslateResult, error) {
	videoID, err := ResolveVideoID(url)
	if err != nil {
		return nil, stageErr(StageResolve, err)
	}
	return p.TranslateByVideoID(ctx, videoID, targetLanguage)
}

func (p *Pipeline) TranslateByVideoID(ctx context.Context, videoID, targetLanguage string) (*TranslateResult, error) {
	lang := p.opts.DefaultLanguage
	key := fmt.Sprintf("translate:%s:%s:%s", videoID, lang, targetLanguage)

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.translate(ctx, videoID, lang, targetLanguage)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TranslateResult), nil
}

func (p *Pipeline) translate(ctx context.Context, videoID, sourceLang, targetLanguage string) (*TranslateResult, error) {
	transcript, err := p.transcripts.Get(ctx, videoID, sourceLang)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}
	if transcript == nil {
		return nil, fmt.Errorf("%w: no transcript on record for video %s", ErrNotFound, videoID)
	}

	cached, err := p.translations.GetByTranscript(ctx, transcript.ID, targetLanguage)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}
	if cached != nil {
		video, err := p.videos.Get(ctx, videoID)
		if err != nil {
			return nil, stageErr(StageStore, err)
		}
		return &TranslateResult{Video: video, Translation: cached, Cached: true}, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, p.opts.StageTimeout)
	defer cancel()
	translatedText, err := p.engine.Translate(genCtx, transcript.Text, targetLanguage)
	if err != nil {
		return nil, stageErr(StageTranslate, err)
	}

	translation, err := p.translations.Put(ctx, transcript.ID, targetLanguage, translatedText)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}

	video, err := p.videos.Get(ctx, videoID)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}
	return &TranslateResult{Video: video, Translation: translation}, nil
}
