package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

const (
	maxResponseBytes = 4 << 20
	backendRemote    = "remote"
)

type RemoteOptions struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// RemoteClient talks to the external generation service over HTTP.
type RemoteClient struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	log     logger.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

func NewRemoteClient(opts RemoteOptions, log logger.Logger, metrics *telemetry.Metrics) (*RemoteClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("generation base url is required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	rc := retryablehttp.NewClient()
	rc.Logger = retryLogger{log: log}
	rc.RetryMax = opts.MaxRetries
	if rc.RetryMax < 0 {
		rc.RetryMax = 0
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	// Hand the final response back so non-2xx bodies reach the caller.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &RemoteClient{
		baseURL: base,
		apiKey:  opts.APIKey,
		client:  rc,
		log:     log.WithFields(map[string]interface{}{"component": "generation.remote"}),
		metrics: metrics,
		tracer:  telemetry.Tracer("generation"),
	}, nil
}

func (c *RemoteClient) Generate(ctx context.Context, req Request) (formulation.Formulation, error) {
	raw, err := c.call(ctx, "generate", req)
	if err != nil {
		return formulation.Formulation{}, err
	}
	if err := formulation.ValidateDocument(raw); err != nil {
		return formulation.Formulation{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	f, err := formulation.DecodeFormulation(raw)
	if err != nil {
		return formulation.Formulation{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if f.Category == "" {
		f.Category = req.Normalized().Category
	}
	return f, nil
}

func (c *RemoteClient) Assess(ctx context.Context, req Request) (formulation.QualityAssessment, error) {
	raw, err := c.call(ctx, "assess", req)
	if err != nil {
		return formulation.QualityAssessment{}, err
	}
	a, err := formulation.DecodeAssessment(raw)
	if err != nil {
		return formulation.QualityAssessment{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return a, nil
}

func (c *RemoteClient) call(ctx context.Context, operation string, req Request) (_ []byte, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, span := c.tracer.Start(ctx, "generation."+operation, trace.WithAttributes(
		attribute.String("generation.backend", backendRemote),
		attribute.String("generation.category", req.Category),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.ObserveGeneration(backendRemote, operation, outcome, time.Since(start))
		span.End()
	}()

	body, err := json.Marshal(req.Normalized())
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+operation, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation service %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("generation service rejected request", map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode,
		})
		return nil, &ServiceError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

// retryLogger adapts logger.Logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	log logger.Logger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.log.Error(msg, kvFields(kv)) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.log.Debug(msg, kvFields(kv)) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.log.Debug(msg, kvFields(kv)) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.log.Warn(msg, kvFields(kv)) }

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
