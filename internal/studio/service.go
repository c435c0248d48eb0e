// Package studio runs formulation submissions end to end and serves them
// over HTTP.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/generation"
	"github.com/joelkehle/formulation-studio/internal/insights"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/report"
	"github.com/joelkehle/formulation-studio/internal/store"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

// ErrNotReady is returned when a report is requested for a submission that
// has not completed.
var ErrNotReady = errors.New("report not ready")

const defaultProcessTimeout = 3 * time.Minute

type ServiceOptions struct {
	// MaxConcurrent bounds generations in flight across all submissions.
	MaxConcurrent int64
	// Assess requests a quality assessment alongside each formulation.
	Assess bool
	// Timeout bounds one submission, generation and assessment included.
	Timeout time.Duration
}

type Service struct {
	store   *store.Store
	gen     generation.Generator
	deriver *insights.Deriver
	sem     *semaphore.Weighted
	assess  bool
	timeout time.Duration
	log     logger.Logger
	metrics *telemetry.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(st *store.Store, gen generation.Generator, deriver *insights.Deriver, opts ServiceOptions, log logger.Logger, metrics *telemetry.Metrics) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProcessTimeout
	}
	if deriver == nil {
		deriver = insights.NewDeriver(nil, nil)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:   st,
		gen:     gen,
		deriver: deriver,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		assess:  opts.Assess,
		timeout: opts.Timeout,
		log:     log,
		metrics: metrics,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

func (s *Service) Deriver() *insights.Deriver { return s.deriver }

// Submit records the submission and generates it in the background. The
// returned record is in the pending state.
func (s *Service) Submit(ctx context.Context, in store.NewSubmission) (store.Submission, error) {
	sub, err := s.create(ctx, in)
	if err != nil {
		return store.Submission{}, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.run(s.baseCtx, sub)
	}()
	return sub, nil
}

// Process records the submission and generates it before returning. A
// generation failure is recorded on the submission and also returned.
func (s *Service) Process(ctx context.Context, in store.NewSubmission) (store.Submission, error) {
	sub, err := s.create(ctx, in)
	if err != nil {
		return store.Submission{}, err
	}
	runErr := s.run(ctx, sub)
	final, err := s.store.Get(context.WithoutCancel(ctx), sub.ID)
	if err != nil {
		return store.Submission{}, err
	}
	return final, runErr
}

// Shutdown stops background generations and waits for them to record their
// outcome or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Get(ctx context.Context, id string) (store.Submission, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]store.Submission, error) {
	return s.store.List(ctx, limit)
}

// Document assembles the report input for a completed submission.
func (s *Service) Document(ctx context.Context, id string) (report.Document, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return report.Document{}, err
	}
	return DocumentFor(sub)
}

// DocumentFor converts a stored submission into a report document.
func DocumentFor(sub store.Submission) (report.Document, error) {
	if sub.Status != store.StatusCompleted || sub.Formulation == nil {
		return report.Document{}, fmt.Errorf("%w: submission %s is %s", ErrNotReady, sub.ID, sub.Status)
	}
	doc := report.Document{
		ID:          sub.ID,
		Prompt:      sub.Prompt,
		Formulation: *sub.Formulation,
		Assessment:  sub.Assessment,
		GeneratedAt: sub.UpdatedAt,
	}
	if sub.Insights != nil {
		doc.Insights = *sub.Insights
	} else {
		doc.Insights = insights.NewDeriver(nil, nil).Derive(*sub.Formulation, sub.City, sub.Category)
	}
	return doc, nil
}

func (s *Service) create(ctx context.Context, in store.NewSubmission) (store.Submission, error) {
	req := generation.Request{Prompt: in.Prompt, Category: in.Category, Location: in.Location}.Normalized()
	if err := req.Validate(); err != nil {
		return store.Submission{}, err
	}
	in.Prompt = req.Prompt
	in.Category = req.Category
	in.Location = req.Location
	in.City = strings.TrimSpace(in.City)

	sub, err := s.store.Create(ctx, in)
	if err != nil {
		return store.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	s.metrics.SubmissionStatus(string(store.StatusPending))
	s.log.Info("submission accepted", map[string]interface{}{"id": sub.ID, "category": sub.Category})
	return sub, nil
}

func (s *Service) run(ctx context.Context, sub store.Submission) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := telemetry.Tracer("studio").Start(ctx, "submission.process")
	span.SetAttributes(attribute.String("submission.id", sub.ID), attribute.String("category", sub.Category))
	defer span.End()

	log := s.log.WithFields(map[string]interface{}{"id": sub.ID})
	// Outcomes are recorded even when ctx was cancelled.
	recordCtx := context.WithoutCancel(ctx)

	defer func() {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Error("submission failed", nil)
		if ferr := s.store.Fail(recordCtx, sub.ID, err.Error()); ferr != nil {
			log.WithError(ferr).Warn("record failure", nil)
			return
		}
		s.metrics.SubmissionStatus(string(store.StatusFailed))
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for generation slot: %w", err)
	}
	defer s.sem.Release(1)
	s.metrics.TrackInFlight(1)
	defer s.metrics.TrackInFlight(-1)

	if err := s.store.MarkGenerating(ctx, sub.ID); err != nil {
		return fmt.Errorf("mark generating: %w", err)
	}
	s.metrics.SubmissionStatus(string(store.StatusGenerating))

	req := generation.Request{Prompt: sub.Prompt, Category: sub.Category, Location: sub.Location}
	f, assessment, err := s.generate(ctx, req, log)
	if err != nil {
		return err
	}

	city := sub.City
	if city == "" {
		city = sub.Location
	}
	ins := s.deriver.Derive(f, city, sub.Category)
	s.metrics.InsightComputed("priorities")
	s.metrics.InsightComputed("market_size")
	s.metrics.InsightComputed("segments")

	if err := s.store.Complete(recordCtx, sub.ID, f, assessment, ins); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	s.metrics.SubmissionStatus(string(store.StatusCompleted))
	log.Info("submission completed", map[string]interface{}{
		"product":     f.ProductName,
		"ingredients": len(f.Ingredients),
		"assessed":    assessment != nil,
	})
	return nil
}

// generate runs the formulation and the optional assessment concurrently.
// A failed assessment is logged and dropped.
func (s *Service) generate(ctx context.Context, req generation.Request, log logger.Logger) (formulation.Formulation, *formulation.QualityAssessment, error) {
	var (
		f          formulation.Formulation
		assessment *formulation.QualityAssessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.gen.Generate(gctx, req)
		if err != nil {
			return fmt.Errorf("generate formulation: %w", err)
		}
		f = out
		return nil
	})
	if s.assess {
		g.Go(func() error {
			out, err := s.gen.Assess(gctx, req)
			if err != nil {
				log.WithError(err).Warn("quality assessment unavailable", nil)
				return nil
			}
			assessment = &out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return formulation.Formulation{}, nil, err
	}
	if f.Category == "" {
		f.Category = req.Category
	}
	return f, assessment, nil
}
