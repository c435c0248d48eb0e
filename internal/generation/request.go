package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joelkehle/formulation-studio/internal/formulation"
)

const (
	MinPromptLength = 3
	MaxPromptLength = 4000
)

// Request is the payload sent to the generation service. The service reads
// the free-text idea from "prompt".
type Request struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
}

// Generator produces formulations and assessments from a product idea.
type Generator interface {
	Generate(ctx context.Context, req Request) (formulation.Formulation, error)
	Assess(ctx context.Context, req Request) (formulation.QualityAssessment, error)
}

// Normalized trims whitespace and lower-cases the category.
func (r Request) Normalized() Request {
	return Request{
		Prompt:   strings.TrimSpace(r.Prompt),
		Category: strings.ToLower(strings.TrimSpace(r.Category)),
		Location: strings.TrimSpace(r.Location),
	}
}

func (r Request) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Prompt))
	switch {
	case n == 0:
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	case n < MinPromptLength:
		return fmt.Errorf("%w: prompt must be at least %d characters", ErrInvalidRequest, MinPromptLength)
	case n > MaxPromptLength:
		return fmt.Errorf("%w: prompt must be at most %d characters", ErrInvalidRequest, MaxPromptLength)
	}
	return nil
}

// Fingerprint identifies a request for caching. Requests that differ only in
// whitespace or category case share a fingerprint.
func (r Request) Fingerprint(operation string) string {
	n := r.Normalized()
	sum := sha256.Sum256([]byte(operation + "\x00" + n.Prompt + "\x00" + n.Category + "\x00" + strings.ToLower(n.Location)))
	return hex.EncodeToString(sum[:])
}
