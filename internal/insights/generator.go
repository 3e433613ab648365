package insights

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no model is configured
	ErrNotConfigured = errors.New("gemini api key not configured")

	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Generator produces a text completion for a prompt
type Generator interface {
	// Generate returns the model's reply to prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the name of the underlying model
	Model() string
}
