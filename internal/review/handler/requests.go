package handler

import (
	"strings"

	"resolute/internal/review/models"
	dErrors "resolute/pkg/errors"
)

// CompleteRequest is the wire shape of a task completion.
type CompleteRequest struct {
	Decision        string `json:"decision"`
	Rationale       string `json:"rationale"`
	RegulatoryBasis string `json:"regulatory_basis,omitempty"`
}

func (r CompleteRequest) Validate() error {
	if strings.TrimSpace(r.Decision) == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	return nil
}

// ParsedDecision returns the decision as a domain type. Queue-specific
// validity is checked by the service against the task's queue.
func (r CompleteRequest) ParsedDecision() models.Decision {
	return models.Decision(strings.TrimSpace(r.Decision))
}
