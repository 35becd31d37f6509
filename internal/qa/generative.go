package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/monitoring"
	"github.com/sells-group/opslens/pkg/anthropic"
	"github.com/sells-group/opslens/pkg/gemini"
)

const systemPrompt = `You are an operations assistant for a managed-services team.
Answer the operator's question using only the project data below. Be concise and specific,
quote dollar amounts with two decimals, and say plainly when data is unavailable or not configured.
Do not invent numbers.`

// Prompt is a generation request built from one Input.
type Prompt struct {
	System   string
	History  []model.ConversationTurn
	Question string
}

// Generator produces answer text from a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GenerativeSynthesizer answers with a Generator and falls back to another
// synthesizer on any error, timeout or empty output. Callers never see the
// generator's failure.
type GenerativeSynthesizer struct {
	gen          Generator
	fallback     *TemplateSynthesizer
	timeout      time.Duration
	contextTurns int
	metrics      *monitoring.Metrics
}

// NewGenerativeSynthesizer creates a GenerativeSynthesizer. contextTurns
// bounds how many earlier turns are sent along.
func NewGenerativeSynthesizer(gen Generator, fallback *TemplateSynthesizer, timeout time.Duration, contextTurns int, metrics *monitoring.Metrics) *GenerativeSynthesizer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if contextTurns < 0 {
		contextTurns = 0
	}
	return &GenerativeSynthesizer{
		gen:          gen,
		fallback:     fallback,
		timeout:      timeout,
		contextTurns: contextTurns,
		metrics:      metrics,
	}
}

// ContextTurns is the number of earlier turns the synthesizer wants.
func (g *GenerativeSynthesizer) ContextTurns() int { return g.contextTurns }

func (g *GenerativeSynthesizer) Synthesize(ctx context.Context, in Input) (Output, error) {
	// Without any usable data the fixed insufficient-data answer is the
	// correct one; the generator is not consulted.
	if in.Selection.OK() == 0 {
		return g.fallback.Synthesize(ctx, in)
	}

	gctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.gen.Generate(gctx, g.prompt(in))
	text = strings.TrimSpace(text)
	var reason string
	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || gctx.Err() == context.DeadlineExceeded):
		reason = "timeout"
	case err != nil:
		reason = "error"
	case text == "":
		reason = "empty"
	}
	if reason != "" {
		zap.L().Warn("qa: generative answer failed, using template",
			zap.String("generator", g.gen.Name()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		g.metrics.ObserveFallback(reason)
		return g.fallback.Synthesize(ctx, in)
	}

	return Output{
		Text:     text,
		Sources:  sources(in.Selection),
		Strategy: model.StrategyGenerative,
	}, nil
}

func (g *GenerativeSynthesizer) prompt(in Input) Prompt {
	hist := in.History
	if len(hist) > g.contextTurns {
		hist = hist[len(hist)-g.contextTurns:]
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	fmt.Fprintf(&b, "\n\nQuestion category: %s\n\nProject data:\n", in.Intent.Category)
	for _, d := range in.Selection.Required {
		if line := g.fallback.section(in, d); line != "" {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if len(in.Selection.Missing) > 0 {
		b.WriteString("- ")
		b.WriteString(notConfigured(in.Selection.Missing))
		b.WriteString("\n")
	}
	return Prompt{System: b.String(), History: hist, Question: in.Question}
}

// AnthropicGenerator generates answers with Claude.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator creates an AnthropicGenerator.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicGenerator{client: client, model: model, maxTokens: maxTokens}
}

func (a *AnthropicGenerator) Name() string { return "anthropic" }

func (a *AnthropicGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	msgs := make([]anthropic.Message, 0, 2*len(p.History)+1)
	for _, t := range p.History {
		msgs = append(msgs,
			anthropic.Message{Role: "user", Content: t.Question},
			anthropic.Message{Role: "assistant", Content: t.Answer},
		)
	}
	msgs = append(msgs, anthropic.Message{Role: "user", Content: p.Question})

	temp := 0.2
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      p.System,
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "qa: anthropic generate")
	}
	resp.Usage.LogCost(a.model, "qa")
	return resp.Text(), nil
}

// GeminiGenerator generates answers with Google Gemini.
type GeminiGenerator struct {
	client    gemini.Client
	maxTokens int32
}

// NewGeminiGenerator creates a GeminiGenerator.
func NewGeminiGenerator(client gemini.Client, maxTokens int32) *GeminiGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &GeminiGenerator{client: client, maxTokens: maxTokens}
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	turns := make([]gemini.Turn, 0, 2*len(p.History)+1)
	for _, t := range p.History {
		turns = append(turns,
			gemini.Turn{Role: "user", Text: t.Question},
			gemini.Turn{Role: "model", Text: t.Answer},
		)
	}
	turns = append(turns, gemini.Turn{Role: "user", Text: p.Question})

	temp := float32(0.2)
	text, err := g.client.Generate(ctx, gemini.Request{
		System:          p.System,
		Turns:           turns,
		Temperature:     &temp,
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "qa: gemini generate")
	}
	return text, nil
}
