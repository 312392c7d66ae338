// Package engine abstracts the generation model. The dialogue controller
// treats it as an opaque text producer: it paraphrases verified facts placed
// in the prompt and is never the source of truth for catalog data.
package engine

import "context"

// Engine streams generated text for a prompt. Implementations must stop
// promptly when ctx is cancelled and must return the emit callback's error
// unchanged so the caller can distinguish client disconnects.
type Engine interface {
	Stream(ctx context.Context, prompt string, emit func(text string) error) error
	Warmup(ctx context.Context) error
}
