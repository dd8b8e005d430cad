// Package genai wraps an OpenAI-compatible chat completion API behind the
// small Generator interface the import pipeline needs: best-effort
// structured completion of missing descriptive fields.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Request describes one enrichment call: the source to draw from, the
// fields to produce, and the context the model should stay consistent with.
type Request struct {
	Title     string
	Category  string
	SourceURL string
	// Fields lists the descriptive fields to generate, e.g. "description".
	Fields []string
	// Context carries already-known field values the completion must not
	// contradict.
	Context map[string]string
}

// Generator produces values for the requested fields. Implementations are
// expected to be slow and occasionally unavailable; callers treat every
// error as row-local.
type Generator interface {
	Generate(ctx context.Context, req Request) (map[string]string, error)
}

// Config holds client settings, normally sourced from the environment.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for OpenAI-compatible endpoints
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Client is the openai-go backed Generator.
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewClient builds a Client from config. BaseURL is optional; when set it
// points the client at a compatible non-OpenAI endpoint.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Client{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

const systemPrompt = `You write concise catalog metadata. Given a content item, produce values for the requested fields only. Respond with a single JSON object whose keys are exactly the requested field names and whose values are plain strings. No markdown, no commentary.`

// Generate asks the model for the requested fields and parses the JSON
// object out of the response. Missing keys degrade to the subset present;
// an unparseable response is an error.
func (c *Client) Generate(ctx context.Context, req Request) (map[string]string, error) {
	if len(req.Fields) == 0 {
		return map[string]string{}, nil
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserPrompt(req)),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty response")
	}

	return parseFields(resp.Choices[0].Message.Content, req.Fields)
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	if req.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", req.SourceURL)
	}
	for k, v := range req.Context {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "\nRequested fields: %s\n", strings.Join(req.Fields, ", "))
	return b.String()
}

// parseFields extracts the JSON object from the completion text. Models
// sometimes wrap JSON in code fences despite instructions, so the first
// '{'..'}' span is used rather than the raw text.
func parseFields(content string, fields []string) (map[string]string, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(raw[f]); v != "" {
			out[f] = v
		}
	}
	return out, nil
}
