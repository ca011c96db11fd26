// Package extract turns flyer images into candidate events using a
// multimodal chat model, plus deterministic QR code URL detection.
package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/config"
	"github.com/Somerville-Events/somerville.events-sub000/internal/breaker"
	"github.com/Somerville-Events/somerville.events-sub000/internal/model"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

// Extraction is a validated candidate event. Optional fields are nil when
// the model did not find them.
type Extraction struct {
	Name            string
	Description     string
	FullText        string
	StartDate       time.Time
	EndDate         *time.Time
	Location        *string
	Categories      []model.Category
	URL             *string
	AgeRestrictions *string
	Price           *float64
	Confidence      float64
}

// Extractor reads an event from an image. A nil Extraction with a nil error
// means the image holds no usable event.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format Format) (*Extraction, error)
}

type Client struct {
	api     *openai.Client
	model   string
	cb      *gobreaker.CircuitBreaker[string]
	timeout time.Duration
	now     func() time.Time
}

func NewClient(cfg config.AIConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		cb:      breaker.New[string]("openai"),
		timeout: cfg.Timeout,
		now:     time.Now,
	}
}

// WithClock fixes "today" in the prompt. Used by tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) Extract(ctx context.Context, data []byte, format Format) (*Extraction, error) {
	dataURL := "data:" + format.MIME() + ";base64," + base64.StdEncoding.EncodeToString(data)
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Prompt(c.now())},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "Extract all text from this image and return it in the specified JSON format."},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
			}},
		},
	}

	content, err := c.cb.Execute(func() (string, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ai extraction: %w", err)
	}
	logger.Debug("extraction response", zap.String("content", content))
	return ParseExtraction(content)
}

// Prompt is the fixed system instruction; only today's date varies.
func Prompt(now time.Time) string {
	today := now.UTC().Format(time.RFC3339)
	var b strings.Builder
	b.WriteString("You are an expert at extracting event information from images.\n")
	b.WriteString("Respond with a single JSON object with exactly these fields:\n")
	b.WriteString(`{"name": string|null, "description": string|null, "full_description": string|null, ` +
		`"start_date": string|null, "end_date": string|null, "location": string|null, ` +
		`"event_types": [string], "url": string|null, "age_restrictions": string|null, ` +
		`"price": number|null, "confidence": number}` + "\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- Extract as much information as possible from the image.\n")
	b.WriteString("- description is a one or two sentence summary; full_description holds all readable text from the image.\n")
	b.WriteString("- confidence is a number between 0.0 and 1.0 indicating how confident you are in the extraction.\n")
	b.WriteString("- event_types uses only these values: " + categoryList() + ".\n")
	b.WriteString("- price is the admission price in US dollars, 0 for free events, null when not stated.\n")
	b.WriteString("- If there is no obvious url, do not fill it out.\n")
	b.WriteString("- Today's date is " + today + ".\n")
	b.WriteString("- start_date and end_date must be RFC 3339 formatted date and time strings.\n")
	b.WriteString("- Assume the event is in the future unless the text clearly indicates it is in the past.\n")
	b.WriteString("- Assume the event is in the timezone of the location if provided.\n")
	b.WriteString("- If the date is ambiguous (e.g. \"Friday\"), assume it is the next occurrence after today's date (" + today + ").\n")
	b.WriteString("- DO NOT default the date to " + today + " if no date is found; return null instead.\n")
	b.WriteString("- Be thorough but accurate. Return only valid JSON.\n")
	return b.String()
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

type rawExtraction struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	FullDescription *string  `json:"full_description"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
	Location        *string  `json:"location"`
	EventTypes      []string `json:"event_types"`
	EventType       *string  `json:"event_type"`
	URL             *string  `json:"url"`
	AgeRestrictions *string         `json:"age_restrictions"`
	Price           json.RawMessage `json:"price"`
	Confidence      float64         `json:"confidence"`
}

// ParseExtraction validates a model response. Missing name or start date
// yields (nil, nil).
func ParseExtraction(content string) (*Extraction, error) {
	content = stripFence(content)
	var raw rawExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}

	name := trimmed(raw.Name)
	if name == nil {
		logger.Info("extraction missing name, treating as no event")
		return nil, nil
	}
	start, ok := parseTime(raw.StartDate)
	if !ok {
		logger.Info("extraction missing start_date, treating as no event", zap.String("name", *name))
		return nil, nil
	}

	ex := &Extraction{
		Name:            *name,
		StartDate:       start,
		Location:        trimmed(raw.Location),
		URL:             trimmed(raw.URL),
		AgeRestrictions: trimmed(raw.AgeRestrictions),
		Price:           parsePrice(raw.Price),
		Confidence:      clamp(raw.Confidence),
	}
	if end, ok := parseTime(raw.EndDate); ok && !end.Before(start) {
		ex.EndDate = &end
	}
	if d := trimmed(raw.Description); d != nil {
		ex.Description = *d
	}
	if d := trimmed(raw.FullDescription); d != nil {
		ex.FullText = *d
	}
	if ex.Description == "" {
		ex.Description = ex.FullText
	}

	types := raw.EventTypes
	if raw.EventType != nil {
		types = append(types, *raw.EventType)
	}
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			ex.Categories = append(ex.Categories, model.ParseCategory(t))
		}
	}
	ex.Categories = model.NormalizeCategories(ex.Categories)
	return ex, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func parseTime(s *string) (time.Time, bool) {
	v := trimmed(s)
	if v == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parsePrice accepts a number or strings like "$12.50" and "Free".
func parsePrice(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "free" {
		zero := 0.0
		return &zero
	}
	s = strings.TrimPrefix(s, "$")
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 {
		return &v
	}
	return nil
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
