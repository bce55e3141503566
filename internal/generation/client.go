// Package generation defines the interface to the text-generation
// collaborator and its OpenAI-backed implementation. The orchestrator owns
// pacing and retries; clients only translate one request into one API call.
package generation

import "context"

// Client generates one completion for a prompt at a given sampling
// temperature.
type Client interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}
