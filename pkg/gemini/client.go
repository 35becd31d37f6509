// Package gemini is a thin wrapper over the Google genai SDK for single
// text completions.
package gemini

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client generates text from a system instruction and a conversation.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Turn is one conversational message. Role is "user" or "model".
type Turn struct {
	Role string
	Text string
}

// Request is a single completion request.
type Request struct {
	System          string
	Turns           []Turn
	Temperature     *float32
	MaxOutputTokens int32
}

// Option configures the client.
type Option func(*genai.ClientConfig)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = u
	}
}

type sdkClient struct {
	cli   *genai.Client
	model string
}

// NewClient creates a Gemini API client for model.
func NewClient(ctx context.Context, apiKey, model string, opts ...Option) (Client, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	for _, o := range opts {
		o(cfg)
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &sdkClient{cli: cli, model: model}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, t := range req.Turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}

	gc := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.cli.Models.GenerateContent(ctx, c.model, contents, gc)
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("gemini: empty response")
	}
	return text, nil
}
