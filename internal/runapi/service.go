package runapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/export"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/provider"
)

// Compile-time interface check.
var _ Handler = (*Service)(nil)

// subscriberBuffer is the per-subscriber event buffer. Progress frames are
// dropped for a subscriber whose buffer is full.
const subscriberBuffer = 64

var (
	errCanceledByClient = errors.New("canceled by client")
	errShuttingDown     = errors.New("service shutting down")
)

// ServiceConfig holds the defaults applied to submitted runs.
type ServiceConfig struct {
	Grace  time.Duration
	Late   map[string]provider.LateFunc
	Logger *zap.Logger
}

// Service runs submitted strategies on a shared Pipeline, one goroutine per
// run, and keeps every run in a Store.
type Service struct {
	pipeline *orchestrator.Pipeline
	store    *Store
	cfg      ServiceConfig

	base context.Context
	stop context.CancelCauseFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
	active map[string]*activeRun
}

type activeRun struct {
	cancel context.CancelCauseFunc
	subs   []chan Event
	done   chan struct{}
}

// NewService creates a Service running on pipeline.
func NewService(pipeline *orchestrator.Pipeline, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base, stop := context.WithCancelCause(context.Background())
	return &Service{
		pipeline: pipeline,
		store:    NewStore(),
		cfg:      cfg,
		base:     base,
		stop:     stop,
		active:   make(map[string]*activeRun),
	}
}

// Card describes the service.
func (s *Service) Card(version string) Card {
	late := make([]string, 0, len(s.cfg.Late))
	for name := range s.cfg.Late {
		late = append(late, name)
	}
	sort.Strings(late)
	return Card{
		Name:        "stratagen",
		Description: "Runs the marketing strategy pipeline and streams its progress.",
		Version:     version,
		Methods:     []string{MethodSubmit, MethodGet, MethodList, MethodCancel},
		Streaming:   true,
		LateSources: late,
	}
}

// HandleSubmit stores a new run and starts it. The run does not inherit the
// request context; only HandleCancelRun and Close stop it.
func (s *Service) HandleSubmit(ctx context.Context, req SubmitRequest) (*Run, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, fmt.Errorf("%w: context is required", ErrInvalidRequest)
	}
	grace := s.cfg.Grace
	if req.GraceMs != nil {
		if *req.GraceMs < 0 {
			return nil, fmt.Errorf("%w: graceMs must not be negative", ErrInvalidRequest)
		}
		grace = time.Duration(*req.GraceMs) * time.Millisecond
	}

	now := time.Now()
	run := Run{
		ID:          uuid.NewString(),
		Context:     req.Context,
		Status:      RunStatus{State: RunStateSubmitted, Timestamp: now},
		SubmittedAt: now,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errShuttingDown
	}
	if err := s.store.Create(run); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	runCtx, cancel := context.WithCancelCause(s.base)
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	s.active[run.ID] = ar
	s.wg.Add(1)
	s.mu.Unlock()

	s.cfg.Logger.Info("runapi: run submitted", zap.String("id", run.ID), zap.Duration("grace", grace))
	go s.execute(runCtx, run.ID, req, grace, ar)

	if !req.Blocking {
		return &run, nil
	}
	select {
	case <-ar.done:
	case <-ctx.Done():
	}
	return s.store.Get(run.ID)
}

// HandleGetRun returns the current state of a run.
func (s *Service) HandleGetRun(_ context.Context, req GetRunRequest) (*Run, error) {
	return s.store.Get(req.ID)
}

// HandleListRuns returns runs matching the filter.
func (s *Service) HandleListRuns(_ context.Context, req ListRunsRequest) (*ListRunsResponse, error) {
	return s.store.List(req)
}

// HandleCancelRun asks a run to stop. The pipeline honours cancellation at
// its next phase boundary, so the returned snapshot may still be working and
// a run already in synthesis completes normally.
func (s *Service) HandleCancelRun(_ context.Context, req CancelRunRequest) (*Run, error) {
	run, err := s.store.Get(req.ID)
	if err != nil {
		return nil, err
	}
	if run.Status.State.IsTerminal() {
		return nil, fmt.Errorf("run %q is %s: %w", req.ID, run.Status.State, ErrRunNotCancelable)
	}

	s.mu.Lock()
	ar, ok := s.active[req.ID]
	s.mu.Unlock()
	if ok {
		ar.cancel(errCanceledByClient)
		s.cfg.Logger.Info("runapi: run cancel requested", zap.String("id", req.ID))
	}
	return s.store.Get(req.ID)
}

// Subscribe returns a channel of progress events for a run. The channel is
// closed when the run finishes; for a finished run it is returned closed.
// The returned func releases the subscription early.
func (s *Service) Subscribe(id string) (<-chan Event, func(), error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	ar, ok := s.active[id]
	if !ok {
		close(ch)
		return ch, func() {}, nil
	}
	ar.subs = append(ar.subs, ch)

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range ar.subs {
			if sub == ch {
				ar.subs = append(ar.subs[:i], ar.subs[i+1:]...)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

// Close stops accepting runs, cancels the active ones and waits for them to
// finish or for ctx to end.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop(errShuttingDown)

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

func (s *Service) execute(ctx context.Context, id string, req SubmitRequest, grace time.Duration, ar *activeRun) {
	defer s.wg.Done()
	defer s.finish(id, ar)

	_, _ = s.store.Update(id, func(r *Run) {
		r.Status = RunStatus{State: RunStateWorking, Timestamp: time.Now()}
	})

	res, err := s.pipeline.Run(ctx, orchestrator.Input{
		Context:     req.Context,
		PreSupplied: req.PreSupplied,
		Late:        s.cfg.Late,
		Grace:       grace,
		Observer: func(ev orchestrator.ProgressEvent) {
			p := ProgressFrom(ev)
			s.publish(id, Event{RunID: id, Progress: &p})
		},
	})

	status := RunStatus{Timestamp: time.Now()}
	var (
		doc string
		exp *export.StrategyExport
	)
	switch {
	case errors.Is(err, orchestrator.ErrCancelled):
		status.State = RunStateCanceled
		status.Message = err.Error()
	case err != nil:
		status.State = RunStateFailed
		status.Message = err.Error()
		status.Section = res.Section
	default:
		doc, exp, err = render(res)
		if err != nil {
			status.State = RunStateFailed
			status.Message = err.Error()
		} else {
			status.State = RunStateCompleted
		}
	}

	_, _ = s.store.Update(id, func(r *Run) {
		r.PipelineRunID = res.RunID
		r.Status = status
		r.Document = doc
		r.Export = exp
		r.Pending = res.PendingNames()
	})

	s.cfg.Logger.Info("runapi: run finished",
		zap.String("id", id),
		zap.String("run_id", res.RunID),
		zap.String("state", string(status.State)),
		zap.String("section", status.Section),
	)
}

func render(res *orchestrator.Result) (string, *export.StrategyExport, error) {
	doc, err := export.Markdown(res.Artifact)
	if err != nil {
		return "", nil, err
	}
	exp, err := export.ExportStrategy(res)
	if err != nil {
		return "", nil, err
	}
	return doc, exp, nil
}

// publish fans ev out to the run's subscribers without blocking. Events for
// a run that has finished are dropped.
func (s *Service) publish(id string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ar, ok := s.active[id]
	if !ok {
		return
	}
	for _, sub := range ar.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (s *Service) finish(id string, ar *activeRun) {
	s.mu.Lock()
	delete(s.active, id)
	subs := ar.subs
	ar.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub)
	}
	ar.cancel(nil)
	close(ar.done)
}
