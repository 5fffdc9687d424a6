package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AudioSegment is a transient slice of downloaded audio. Segments belong to
// the pipeline run that created them and must not outlive it.
type AudioSegment struct {
	Path        string
	Index       int
	StartOffset float64
	Duration    float64
}

// Acquisition bundles the segments of one download together with the files
// that back them, so cleanup can remove everything the run produced.
type Acquisition struct {
	Metadata VideoMetadata
	Segments []AudioSegment
	scratch  []string
}

// Cleanup removes every file this acquisition wrote. Safe to call more than
// once and on partially built acquisitions.
func (a *Acquisition) Cleanup() {
	for _, path := range a.scratch {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			continue
		}
	}
	a.scratch = nil
}

// MediaAcquirer turns a video ID into transcription-ready mp3 segments:
// download the chosen audio stream, normalize it with ffmpeg, and split it
// when the duration exceeds twice the chunk duration.
type MediaAcquirer struct {
	yt      *YouTubeService
	tempDir string
	log     *logrus.Logger
}

func NewMediaAcquirer(yt *YouTubeService, tempDir string, log *logrus.Logger) *MediaAcquirer {
	return &MediaAcquirer{yt: yt, tempDir: tempDir, log: log}
}

func (m *MediaAcquirer) Acquire(ctx context.Context, videoID, preferredQuality string, chunkDuration int) (*Acquisition, error) {
	video, err := m.yt.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	format, err := m.yt.SelectAudioFormat(video, preferredQuality)
	if err != nil {
		return nil, err
	}

	acq := &Acquisition{Metadata: MetadataOf(video)}

	rawPath := filepath.Join(m.tempDir, fmt.Sprintf("temp_%s_%d.tmp", videoID, time.Now().UnixNano()))
	if err := m.yt.DownloadStream(ctx, video, format, rawPath); err != nil {
		acq.Cleanup()
		return nil, err
	}
	acq.scratch = append(acq.scratch, rawPath)

	audioPath := filepath.Join(m.tempDir, fmt.Sprintf("%s.mp3", videoID))
	if err := m.transcode(ctx, rawPath, audioPath); err != nil {
		acq.Cleanup()
		return nil, err
	}
	acq.scratch = append(acq.scratch, audioPath)

	// The raw container is not needed once the mp3 exists.
	os.Remove(rawPath)

	duration, err := m.probeDuration(ctx, audioPath)
	if err != nil {
		acq.Cleanup()
		return nil, err
	}

	plans := planSegments(duration, float64(chunkDuration))
	if len(plans) == 1 {
		acq.Segments = []AudioSegment{{Path: audioPath, Index: 0, StartOffset: 0, Duration: duration}}
		return acq, nil
	}

	m.log.WithFields(logrus.Fields{
		"video_id": videoID,
		"duration": duration,
		"chunks":   len(plans),
	}).Info("splitting audio into chunks")

	for _, p := range plans {
		chunkPath := filepath.Join(m.tempDir, fmt.Sprintf("%s_chunk_%d.mp3", videoID, p.index+1))
		if err := m.extractSegment(ctx, audioPath, chunkPath, p.start, p.duration); err != nil {
			acq.Cleanup()
			return nil, err
		}
		acq.scratch = append(acq.scratch, chunkPath)
		acq.Segments = append(acq.Segments, AudioSegment{
			Path:        chunkPath,
			Index:       p.index,
			StartOffset: p.start,
			Duration:    p.duration,
		})
	}

	return acq, nil
}

func (m *MediaAcquirer) transcode(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", src,
		"-vn", "-ar", "44100", "-ac", "2", "-b:a", "192k",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		m.log.WithField("output", truncateForLog(string(out))).Error("ffmpeg transcode failed")
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	return nil
}

func (m *MediaAcquirer) extractSegment(ctx context.Context, src, dst string, start, duration float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", src,
		"-ss", formatOffset(start),
		"-t", strconv.FormatFloat(duration, 'f', 3, 64),
		"-acodec", "copy",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		m.log.WithField("output", truncateForLog(string(out))).Error("ffmpeg segment extraction failed")
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	return nil
}

func (m *MediaAcquirer) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", ErrTranscodeFailed, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable duration %q", ErrTranscodeFailed, strings.TrimSpace(string(out)))
	}
	return duration, nil
}

type segmentPlan struct {
	index    int
	start    float64
	duration float64
}

// planSegments returns a single full-length plan when the audio fits within
// twice the chunk duration, otherwise contiguous non-overlapping fixed-length
// plans whose durations sum to the total (the last one may be shorter).
func planSegments(totalDuration, chunkDuration float64) []segmentPlan {
	if chunkDuration <= 0 || totalDuration <= chunkDuration*2 {
		return []segmentPlan{{index: 0, start: 0, duration: totalDuration}}
	}

	numChunks := int(math.Ceil(totalDuration / chunkDuration))
	plans := make([]segmentPlan, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := float64(i) * chunkDuration
		end := math.Min(start+chunkDuration, totalDuration)
		plans = append(plans, segmentPlan{index: i, start: start, duration: end - start})
	}
	return plans
}

func formatOffset(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func truncateForLog(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
