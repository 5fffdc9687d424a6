package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"
)

// YouTubeService wraps the platform clients: stream metadata and download via
// kkdai/youtube, caption retrieval via the transcript API.
type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
	log           *logrus.Logger
}

func NewYouTubeService(log *logrus.Logger) *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
		log:           log,
	}
}

// VideoMetadata is the subset of platform metadata the cache stores.
type VideoMetadata struct {
	VideoID       string
	Title         string
	Author        string
	LengthSeconds int
	ThumbnailURL  string
}

func (s *YouTubeService) GetVideo(ctx context.Context, videoID string) (*yt.Video, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return video, nil
}

func MetadataOf(video *yt.Video) VideoMetadata {
	meta := VideoMetadata{
		VideoID:       video.ID,
		Title:         video.Title,
		Author:        video.Author,
		LengthSeconds: int(video.Duration.Seconds()),
	}
	if len(video.Thumbnails) > 0 {
		meta.ThumbnailURL = video.Thumbnails[len(video.Thumbnails)-1].URL
	}
	return meta
}

// GetMetadata resolves a video's metadata without touching any stream.
func (s *YouTubeService) GetMetadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	video, err := s.GetVideo(ctx, videoID)
	if err != nil {
		return VideoMetadata{}, err
	}
	return MetadataOf(video), nil
}

// SelectAudioFormat picks an audio-only stream by the quality policy:
// "highest" takes the top bitrate, "lowest" the bottom, "medium" the middle
// of the bitrate-sorted list. Anything else falls back to highest.
func (s *YouTubeService) SelectAudioFormat(video *yt.Video, preferredQuality string) (*yt.Format, error) {
	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return nil, ErrNoStreamAvailable
	}

	sort.Slice(formats, func(i, j int) bool {
		return formats[i].Bitrate > formats[j].Bitrate
	})

	var f yt.Format
	switch preferredQuality {
	case "lowest":
		f = formats[len(formats)-1]
	case "medium":
		f = formats[len(formats)/2]
	default:
		f = formats[0]
	}

	s.log.WithFields(logrus.Fields{
		"video_id": video.ID,
		"itag":     f.ItagNo,
		"bitrate":  f.Bitrate,
		"mime":     f.MimeType,
	}).Debug("selected audio stream")

	return &f, nil
}

// DownloadStream writes the raw stream to destPath.
func (s *YouTubeService) DownloadStream(ctx context.Context, video *yt.Video, format *yt.Format, destPath string) error {
	stream, _, err := s.ytClient.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer stream.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

// GetCaptionTranscript fetches platform captions, preferring English tracks
// and falling back to any available language. Used as the cheap fast path
// before paying for an audio download and speech-to-text.
func (s *YouTubeService) GetCaptionTranscript(videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no captions available: %w", err)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("caption track is empty")
	}

	var b strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString(" ")
	}

	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" {
		return "", fmt.Errorf("caption text resolved to empty content")
	}
	return cleaned, nil
}

// StreamFormat describes one downloadable format for the formats endpoint.
type StreamFormat struct {
	Itag          int    `json:"itag"`
	MimeType      string `json:"mime_type"`
	Quality       string `json:"quality"`
	Bitrate       int    `json:"bitrate"`
	HasVideo      bool   `json:"has_video"`
	HasAudio      bool   `json:"has_audio"`
	ContentLength int64  `json:"content_length"`
}

// ListFormats returns every available stream for a video.
func (s *YouTubeService) ListFormats(ctx context.Context, videoID string) (VideoMetadata, []StreamFormat, error) {
	video, err := s.GetVideo(ctx, videoID)
	if err != nil {
		return VideoMetadata{}, nil, err
	}

	formats := make([]StreamFormat, 0, len(video.Formats))
	for _, f := range video.Formats {
		quality := f.QualityLabel
		if quality == "" {
			quality = f.AudioQuality
		}
		formats = append(formats, StreamFormat{
			Itag:          f.ItagNo,
			MimeType:      f.MimeType,
			Quality:       quality,
			Bitrate:       f.Bitrate,
			HasVideo:      strings.HasPrefix(f.MimeType, "video/"),
			HasAudio:      f.AudioChannels > 0 || strings.HasPrefix(f.MimeType, "audio/"),
			ContentLength: f.ContentLength,
		})
	}

	return MetadataOf(video), formats, nil
}
