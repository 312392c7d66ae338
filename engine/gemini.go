package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Low temperature: the model's job is paraphrasing verified context, not
// creative writing.
const temperature = float32(0.1)

// Gemini generates text via the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string

	mu     sync.RWMutex
	closed bool
}

// NewGemini creates the client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
}

// Stream generates a response and delivers text chunks as they arrive.
func (g *Gemini) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return errors.New("engine is closed")
	}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.config()) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "gemini stream")
		}
		if text := resp.Text(); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	return nil
}

// Warmup sends a throwaway request so the first real turn doesn't pay the
// model load cost. Failures are the caller's to ignore.
func (g *Gemini) Warmup(ctx context.Context) error {
	_, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text("Hello!"), g.config())
	if err != nil {
		log.Warn().Err(err).Msg("engine warmup failed")
		return errors.Wrap(err, "gemini warmup")
	}
	return nil
}

// Close marks the engine unusable.
func (g *Gemini) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
