package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/uaffan326-del/video-library-system/config"
)

const taggingPrompt = `Analyze these video frames and describe the clip for a music video library.

Provide:
1. THEME: Main subject/theme (nature, urban, abstract, space, etc.)
2. MOOD: Emotional tone (positive, negative, neutral) and intensity (1-10)
3. STYLE: Visual style (cinematic, abstract, minimalist, vibrant, dark, etc.)
4. ENERGY: Energy level (calm, moderate, energetic, intense)
5. COLORS: Dominant color palette
6. KEYWORDS: 5-7 descriptive keywords for search/filtering
7. SUITABLE_FOR: Types of song genres or moods this would work well with

Respond in exactly this format:
THEME: [theme]
MOOD: [mood] (intensity: [1-10])
STYLE: [style]
ENERGY: [energy level]
COLORS: [color1, color2, color3]
KEYWORDS: [keyword1, keyword2, keyword3, keyword4, keyword5]
SUITABLE_FOR: [genre/mood suggestions]`

// TagResult holds the parsed model response for one clip. Zero value means
// the model produced nothing usable.
type TagResult struct {
	Theme         string   `json:"theme"`
	Mood          string   `json:"mood"`
	MoodIntensity int      `json:"mood_intensity"`
	Style         string   `json:"style"`
	Energy        string   `json:"energy"`
	Colors        []string `json:"colors"`
	Keywords      []string `json:"keywords"`
	SuitableFor   []string `json:"suitable_for"`
	RawResponse   string   `json:"-"`
}

// Empty reports whether no field of the result carries content.
func (r TagResult) Empty() bool {
	return r.Theme == "" && r.Mood == "" && r.Style == "" && r.Energy == "" &&
		len(r.Colors) == 0 && len(r.Keywords) == 0 && len(r.SuitableFor) == 0
}

// Tagger describes a clip from its sampled frames.
type Tagger interface {
	TagClip(ctx context.Context, frames []FrameSample) (TagResult, error)
}

// GeminiTagger sends key frames to the Gemini vision model and parses the
// structured text reply.
type GeminiTagger struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	retries int

	// generate performs one full model exchange; swappable in tests.
	generate func(ctx context.Context, parts []genai.Part) (string, error)
}

func NewGeminiTagger(cfg *config.Config) (*GeminiTagger, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrTaggingFatal)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.SetTemperature(0.3)

	t := &GeminiTagger{
		client:  client,
		model:   model,
		timeout: cfg.TaggerTimeout,
		retries: cfg.TaggerRetries,
	}
	t.generate = t.generateContent
	return t, nil
}

func (t *GeminiTagger) Close() {
	t.client.Close()
}

// TagClip asks the model to describe the frames. Transient failures are
// retried with backoff; quota and auth failures surface as ErrTaggingFatal.
// A reply that stays malformed after one reprompt yields an empty result
// without error so the clip is still stored.
func (t *GeminiTagger) TagClip(ctx context.Context, frames []FrameSample) (TagResult, error) {
	parts := make([]genai.Part, 0, len(frames)+1)
	parts = append(parts, genai.Text(taggingPrompt))
	for _, frame := range frames {
		if len(frame.JPEG) == 0 {
			continue
		}
		parts = append(parts, genai.ImageData("jpeg", frame.JPEG))
	}
	if len(parts) == 1 {
		return TagResult{}, fmt.Errorf("%w: no frames to tag", ErrTaggingTransient)
	}

	text, err := t.generate(ctx, parts)
	if err != nil {
		return TagResult{}, err
	}

	result := parseTagResponse(text)
	if !result.Empty() {
		return result, nil
	}

	config.Log.WithField("response_len", len(text)).Warn("Malformed tagging response, reprompting once")
	text, err = t.generate(ctx, parts)
	if err != nil {
		return TagResult{}, err
	}
	return parseTagResponse(text), nil
}

func (t *GeminiTagger) generateContent(ctx context.Context, parts []genai.Part) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
		resp, err := t.model.GenerateContent(reqCtx, parts...)
		cancel()
		if err != nil {
			if isFatalAPIError(err) {
				return "", fmt.Errorf("%w: %v", ErrTaggingFatal, err)
			}
			lastErr = err
			config.Log.WithField("attempt", attempt+1).WithField("error", err.Error()).
				Warn("Tagging request failed")
			continue
		}
		if text := extractText(resp); text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("empty model response")
	}
	return "", fmt.Errorf("%w: %v", ErrTaggingTransient, lastErr)
}

// isFatalAPIError classifies errors no retry can recover from.
func isFatalAPIError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"api key", "unauthorized", "unauthenticated", "permission", "quota", "resource_exhausted", "billing"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}

// parseTagResponse reads KEY: value lines. Unknown keys are ignored, missing
// keys leave their field zero.
func parseTagResponse(text string) TagResult {
	result := TagResult{RawResponse: text}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "THEME":
			result.Theme = strings.ToLower(value)
		case "MOOD":
			result.Mood, result.MoodIntensity = parseMood(value)
		case "STYLE":
			result.Style = strings.ToLower(value)
		case "ENERGY":
			result.Energy = strings.ToLower(value)
		case "COLORS":
			result.Colors = splitList(value)
		case "KEYWORDS":
			result.Keywords = splitList(value)
		case "SUITABLE_FOR":
			result.SuitableFor = splitList(value)
		}
	}
	return result
}

// parseMood splits "positive (intensity: 7)" into its tone and 1-10 score.
func parseMood(value string) (string, int) {
	mood := value
	intensity := 5

	if i := strings.Index(value, "("); i >= 0 {
		mood = strings.TrimSpace(value[:i])
		inner := value[i+1:]
		if j := strings.Index(inner, ")"); j >= 0 {
			inner = inner[:j]
		}
		if _, num, found := strings.Cut(inner, ":"); found {
			if n, err := strconv.Atoi(strings.TrimSpace(num)); err == nil && n >= 1 && n <= 10 {
				intensity = n
			}
		}
	}
	return strings.ToLower(mood), intensity
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.Trim(strings.TrimSpace(item), "[]"))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
