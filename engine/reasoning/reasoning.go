// Package reasoning defines the opaque reasoning capability consumed by the
// agent adapters. The backend may be slow or failing; callers wrap every
// invocation with a circuit breaker and a deadline.
package reasoning

import "context"

// Request carries one reasoning invocation.
type Request struct {
	// System frames the agent's role.
	System string
	// Prompt is the incident-specific question.
	Prompt string
}

// Answer is the structured response every backend must produce.
type Answer struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Service is the reasoning port. Implementations must respect ctx deadlines.
type Service interface {
	Reason(ctx context.Context, req Request) (*Answer, error)
	Name() string
}
