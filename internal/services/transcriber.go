package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// SpeechToText converts one local audio file into target-language text.
// The translations-style endpoint always produces the target language
// regardless of the spoken language.
type SpeechToText interface {
	TranslateAudio(ctx context.Context, audioPath string) (string, error)
}

// WhisperClient talks to an OpenAI-compatible /audio/translations endpoint.
type WhisperClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewWhisperClient(baseURL, apiKey, model string, log *logrus.Logger) *WhisperClient {
	return &WhisperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		log:        log,
	}
}

func (c *WhisperClient) TranslateAudio(ctx context.Context, audioPath string) (string, error) {
	var text string

	operation := func() error {
		var err error
		text, err = c.translateOnce(ctx, audioPath)
		return err
	}

	// Transient platform errors (429, 5xx) are retried with exponential
	// backoff; permanent failures stop immediately.
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(3*time.Minute),
	), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return text, nil
}

func (c *WhisperClient) translateOnce(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("open audio file: %w", err))
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", backoff.Permanent(err)
	}
	writer.WriteField("model", c.model)
	if err := writer.Close(); err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/translations", &body)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("speech-to-text returned %d", resp.StatusCode)
	default:
		return "", backoff.Permanent(fmt.Errorf("speech-to-text returned %d: %s", resp.StatusCode, truncateForLog(string(respBody))))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode speech-to-text response: %w", err))
	}
	return parsed.Text, nil
}

// Transcriber runs speech-to-text over ordered segments and assembles a
// single transcript.
type Transcriber struct {
	stt    SpeechToText
	strict bool
	log    *logrus.Logger
}

func NewTranscriber(stt SpeechToText, strict bool, log *logrus.Logger) *Transcriber {
	return &Transcriber{stt: stt, strict: strict, log: log}
}

// Transcribe processes segments in order. In lenient mode a failed segment
// contributes empty text and the overall result is a best-effort
// concatenation; the call fails only when every segment fails. In strict
// mode the first failure aborts.
func (t *Transcriber) Transcribe(ctx context.Context, segments []AudioSegment) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments to transcribe", ErrTranscriptionFailed)
	}

	texts := make([]string, len(segments))
	succeeded := 0
	for i, seg := range segments {
		text, err := t.stt.TranslateAudio(ctx, seg.Path)
		if err != nil {
			if t.strict {
				return "", fmt.Errorf("%w: segment %d: %v", ErrTranscriptionFailed, seg.Index+1, err)
			}
			t.log.WithFields(logrus.Fields{
				"segment": seg.Index + 1,
				"error":   err.Error(),
			}).Warn("segment transcription failed, continuing")
			continue
		}
		texts[i] = text
		succeeded++
	}

	if succeeded == 0 {
		return "", fmt.Errorf("%w: all %d segments failed", ErrTranscriptionFailed, len(segments))
	}

	if len(segments) == 1 {
		return texts[0], nil
	}

	// Chunk headers keep a stitched multi-segment transcript auditable.
	parts := make([]string, len(texts))
	for i, text := range texts {
		parts[i] = fmt.Sprintf("--- Chunk %d ---\n%s", i+1, text)
	}
	return strings.Join(parts, "\n\n"), nil
}
