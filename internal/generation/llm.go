package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

const (
	systemPrompt = "You are a product formulation chemist and market analyst for consumer goods sold in India. Respond with strict JSON only."

	DefaultModel     = string(anthropic.ModelClaudeSonnet4_20250514)
	backendAnthropic = "anthropic"
	maxStageAttempts = 3
)

type llmFailureClass int

const (
	failureNone llmFailureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

type LLMCaller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages  AnthropicMessager
	model     string
	maxTokens int64
}

func NewAnthropicCaller(apiKey, model string) (*AnthropicCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key not configured")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicCallerWithMessager(&c.Messages, model), nil
}

func NewAnthropicCallerWithMessager(m AnthropicMessager, model string) *AnthropicCaller {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &AnthropicCaller{messages: m, model: model, maxTokens: 4096}
}

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.4),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// StageExecutor calls the model until it returns JSON that parses and passes
// validation, feeding each failure back into the next prompt.
type StageExecutor struct {
	caller  LLMCaller
	backoff func(attempt int) time.Duration
}

func NewStageExecutor(caller LLMCaller) *StageExecutor {
	return &StageExecutor{caller: caller, backoff: backoffDelay}
}

func (e *StageExecutor) Run(ctx context.Context, stage, prompt string, validate func(raw []byte) error) ([]byte, error) {
	feedback := ""
	var lastErr error
	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		fullPrompt := prompt + "\n\nRespond with only valid JSON matching the schema."
		if feedback != "" {
			fullPrompt += "\n\n" + feedback
		}

		raw, err := e.caller.GenerateJSON(ctx, fullPrompt)
		if err != nil {
			class := classifyTransportError(err)
			if (class == failureTimeout || class == failureRateLimit || class == failureServer) && attempt < maxStageAttempts {
				lastErr = err
				if werr := wait(ctx, e.backoff(attempt)); werr != nil {
					return nil, &StageError{Stage: stage, Attempts: attempt, Err: werr}
				}
				continue
			}
			return nil, &StageError{Stage: stage, Attempts: attempt, Err: fmt.Errorf("transport failure: %w", err)}
		}

		clean := stripCodeFences(raw)
		switch {
		case clean == "":
			lastErr = errors.New("empty response")
			feedback = "Your previous response was empty. Respond with valid JSON."
		case !json.Valid([]byte(clean)):
			lastErr = fmt.Errorf("%w: not valid json", ErrInvalidResponse)
			feedback = "Your previous response was not valid JSON. Respond with only valid JSON."
		default:
			if err := validate([]byte(clean)); err != nil {
				lastErr = fmt.Errorf("%w: %v", ErrInvalidResponse, err)
				feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", err)
				break
			}
			return []byte(clean), nil
		}
	}
	return nil, &StageError{Stage: stage, Attempts: maxStageAttempts, Err: lastErr}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) llmFailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return failureRateLimit
		case apiErr.StatusCode >= 500:
			return failureServer
		case apiErr.StatusCode >= 400:
			return failureClient
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}

// LLMGenerator produces formulations directly from a language model.
type LLMGenerator struct {
	exec    *StageExecutor
	log     logger.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

func NewLLMGenerator(caller LLMCaller, log logger.Logger, metrics *telemetry.Metrics) *LLMGenerator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &LLMGenerator{
		exec:    NewStageExecutor(caller),
		log:     log.WithFields(map[string]interface{}{"component": "generation.llm"}),
		metrics: metrics,
		tracer:  telemetry.Tracer("generation"),
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (f formulation.Formulation, err error) {
	if err := req.Validate(); err != nil {
		return formulation.Formulation{}, err
	}
	req = req.Normalized()
	ctx, done := g.observe(ctx, "generate", req)
	defer func() { done(err) }()

	raw, err := g.exec.Run(ctx, "generate", generatePrompt(req), formulation.ValidateDocument)
	if err != nil {
		return formulation.Formulation{}, err
	}
	f, err = formulation.DecodeFormulation(raw)
	if err != nil {
		return formulation.Formulation{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if f.Category == "" {
		f.Category = req.Category
	}
	return f, nil
}

func (g *LLMGenerator) Assess(ctx context.Context, req Request) (a formulation.QualityAssessment, err error) {
	if err := req.Validate(); err != nil {
		return formulation.QualityAssessment{}, err
	}
	req = req.Normalized()
	ctx, done := g.observe(ctx, "assess", req)
	defer func() { done(err) }()

	raw, err := g.exec.Run(ctx, "assess", assessPrompt(req), validateAssessment)
	if err != nil {
		return formulation.QualityAssessment{}, err
	}
	a, err = formulation.DecodeAssessment(raw)
	if err != nil {
		return formulation.QualityAssessment{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return a, nil
}

func (g *LLMGenerator) observe(ctx context.Context, operation string, req Request) (context.Context, func(error)) {
	ctx, span := g.tracer.Start(ctx, "generation."+operation, trace.WithAttributes(
		attribute.String("generation.backend", backendAnthropic),
		attribute.String("generation.category", req.Category),
	))
	start := time.Now()
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.log.WithError(err).Warn("llm generation failed", map[string]interface{}{"operation": operation})
		}
		g.metrics.ObserveGeneration(backendAnthropic, operation, outcome, time.Since(start))
		span.End()
	}
}

func validateAssessment(raw []byte) error {
	a, err := formulation.DecodeAssessment(raw)
	if err != nil {
		return err
	}
	if a.Summary == "" && len(a.Strengths) == 0 && len(a.Improvements) == 0 {
		return errors.New("assessment must include a summary, strengths or improvements")
	}
	return nil
}
