package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Complete sends a single user message and returns the model's reply.
	// No history is accumulated between calls.
	Complete(ctx context.Context, prompt string) (string, error)
}
