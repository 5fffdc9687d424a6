package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// TextGenerator produces text from a system instruction and a user message.
// Summarization and translation share this boundary with different prompts.
type TextGenerator interface {
	Generate(ctx context.Context, systemInstruction, userMessage string) (string, error)
}

// GeminiGenerator implements TextGenerator on the Gemini API, with a token
// bucket bounding concurrent requests.
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
	rateChan  chan struct{}
}

func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, concurrentReqs int) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiGenerator{
		client:    client,
		modelName: modelName,
		rateChan:  rateChan,
	}, nil
}

func (g *GeminiGenerator) Close() {
	g.client.Close()
}

func (g *GeminiGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiGenerator) Generate(ctx context.Context, systemInstruction, userMessage string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userMessage))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty text")
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

const summarySystemInstruction = `You are an expert video content summarizer.
Your task is to create a comprehensive summary of the video transcript provided.
The summary should:
1. Capture all key points and main ideas
2. Be well-structured with clear sections
3. Maintain the original context and intent
4. Highlight important facts, figures, and quotes
5. Be concise but thorough`

const chunkSummarySystemInstruction = "Summarize this section of a transcript concisely while preserving all key information."

const translateSystemInstruction = `You are an expert translator with deep knowledge of context, idioms, and cultural nuances.
Your task is to translate content accurately while preserving:
1. The original meaning and intent
2. Technical terminology and jargon
3. Cultural references when possible
4. Tone and style of the original
5. Formatting and structure

Prioritize natural-sounding language in the target language over literal translation.`

// GenerationEngine runs the chunk-and-combine algorithm over a TextGenerator
// for both summarization and translation. Short inputs go out in a single
// request; long inputs are split on word boundaries, processed per chunk,
// then combined (a merge call for summaries, plain concatenation for
// translations).
type GenerationEngine struct {
	gen                 TextGenerator
	summaryChunkChars   int
	translateChunkChars int
	log                 *logrus.Logger
}

func NewGenerationEngine(gen TextGenerator, summaryChunkChars, translateChunkChars int, log *logrus.Logger) *GenerationEngine {
	return &GenerationEngine{
		gen:                 gen,
		summaryChunkChars:   summaryChunkChars,
		translateChunkChars: translateChunkChars,
		log:                 log,
	}
}

func (e *GenerationEngine) Summarize(ctx context.Context, transcript, title string) (string, error) {
	system := summarySystemInstruction
	if title != "" {
		system += "\nThe title of the video is: " + title
	}

	chunks := chunkByWords(transcript, e.summaryChunkChars)
	if len(chunks) <= 1 {
		summary, err := e.gen.Generate(ctx, system, "Please summarize this transcript:\n\n"+transcript)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		return summary, nil
	}

	e.log.WithField("chunks", len(chunks)).Info("summarizing long transcript in sections")

	// First pass: summarize each chunk independently.
	chunkSummaries := make([]string, len(chunks))
	for i, chunk := range chunks {
		out, err := e.gen.Generate(ctx, chunkSummarySystemInstruction,
			fmt.Sprintf("Transcript section %d/%d:\n\n%s", i+1, len(chunks), chunk))
		if err != nil {
			return "", fmt.Errorf("%w: section %d: %v", ErrGenerationFailed, i+1, err)
		}
		chunkSummaries[i] = out
	}

	// Second pass: merge the section summaries into one cohesive result.
	sections := make([]string, len(chunkSummaries))
	for i, s := range chunkSummaries {
		sections[i] = fmt.Sprintf("Section %d:\n%s", i+1, s)
	}

	summary, err := e.gen.Generate(ctx, system,
		"These are summaries of different sections of a transcript. Please create a cohesive, well-structured final summary:\n\n"+
			strings.Join(sections, "\n\n"))
	if err != nil {
		return "", fmt.Errorf("%w: merge: %v", ErrGenerationFailed, err)
	}
	return summary, nil
}

func (e *GenerationEngine) Translate(ctx context.Context, transcript, targetLanguage string) (string, error) {
	instruction := fmt.Sprintf("Translate the following text to %s. Maintain the original formatting, paragraph breaks, and structure:\n\n", targetLanguage)

	chunks := chunkByWords(transcript, e.translateChunkChars)
	if len(chunks) <= 1 {
		out, err := e.gen.Generate(ctx, translateSystemInstruction, instruction+transcript)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		return out, nil
	}

	e.log.WithFields(logrus.Fields{
		"chunks":   len(chunks),
		"language": targetLanguage,
	}).Info("translating long transcript in sections")

	// Translated chunks are concatenated in order; unlike summaries they
	// need no re-synthesis pass.
	translated := make([]string, len(chunks))
	for i, chunk := range chunks {
		out, err := e.gen.Generate(ctx, translateSystemInstruction, instruction+chunk)
		if err != nil {
			return "", fmt.Errorf("%w: section %d: %v", ErrGenerationFailed, i+1, err)
		}
		translated[i] = out
	}
	return strings.Join(translated, "\n"), nil
}

// chunkByWords splits text into chunks of at most maxChars, accumulating the
// budget word by word so no word is ever cut mid-token.
func chunkByWords(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	words := strings.Fields(text)
	var chunks []string
	var current []string
	currentSize := 0

	for _, word := range words {
		if currentSize > 0 && currentSize+len(word)+1 > maxChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{word}
			currentSize = len(word)
			continue
		}
		current = append(current, word)
		if currentSize == 0 {
			currentSize = len(word)
		} else {
			currentSize += len(word) + 1
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
