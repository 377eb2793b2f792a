// Package ai holds the LLM extraction tiers: a provider abstraction over
// chat-completion backends, the prompt builder, and the lenient response
// parser.
package ai

import "context"

// Provider abstracts a chat-completion backend. Implementations must honor
// the caller's context; the pipeline relies on deadlines to bound every tier.
type Provider interface {
	// Complete sends a text-only prompt and returns the raw model output.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteVision sends a prompt together with a PNG page image.
	CompleteVision(ctx context.Context, prompt string, imagePNG []byte) (string, error)

	// Name identifies the backend in logs and results.
	Name() string
}
