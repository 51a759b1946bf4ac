package agent

import "fmt"

// GenerationError wraps an LLM failure during the conversation loop.
// It is distinct from the iteration-cap fallback: the fallback is a
// successful conversation with a canned answer, a GenerationError means
// no answer could be produced at all.
type GenerationError struct {
	Iteration int
	Err       error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on iteration %d: %v", e.Iteration, e.Err)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}
