package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/dci/pkg/data"
	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/journal"
	"github.com/jllopis/dci/pkg/telemetry"
)

type interactionIDKey struct{}

// WithInteractionID attaches an interaction id to the context.
func WithInteractionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, interactionIDKey{}, id)
}

// InteractionID returns the interaction id if present.
func InteractionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(interactionIDKey{}).(string)
	return id, ok
}

// Runner executes use cases with tracing, logging, optional participant
// locking and an optional journal. It never changes the error a use case
// returns. A Runner is safe for concurrent use.
type Runner struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.DispatchMetrics
	recorder journal.Recorder
	lock     bool
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunnerTracer sets the tracer used for interaction spans.
func WithRunnerTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithRunnerMetrics records interaction metrics.
func WithRunnerMetrics(metrics *telemetry.DispatchMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// WithJournal records one entry per run.
func WithJournal(recorder journal.Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = recorder
	}
}

// WithParticipantLocks holds every participant's lock for the whole
// interaction. Locks are taken in participant id order.
func WithParticipantLocks(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.lock = enabled
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = telemetry.Component(nil, "interaction")
	}
	return r
}

// Run executes uc against participants and args.
func (r *Runner) Run(ctx context.Context, uc UseCase, participants []data.Participant, args ...any) (any, error) {
	id := uuid.NewString()
	ctx = WithInteractionID(ctx, id)
	started := r.now()

	initiator := ""
	if uc.Initiator >= 0 && uc.Initiator < len(participants) && participants[uc.Initiator] != nil {
		initiator = fmt.Sprintf("%T", participants[uc.Initiator])
	}
	ctx, span := r.tracer.Start(ctx, "dci.interaction "+uc.Name,
		trace.WithAttributes(telemetry.InteractionAttributes(id, uc.Name, initiator, len(participants))...))

	var (
		out any
		err = uc.Validate(participants)
	)
	if err == nil {
		r.logger.DebugContext(ctx, "interaction started",
			slog.String("interaction_id", id),
			slog.String("usecase", uc.Name),
			slog.String("method", uc.Method))
		out, err = r.execute(ctx, uc, participants, args)
	}
	finished := r.now()

	r.metrics.RecordInteraction(ctx, uc.Name, err)
	r.log(ctx, id, uc, err, finished.Sub(started))
	r.record(ctx, id, uc, initiator, participants, err, started, finished)
	telemetry.EndSpan(span, err)
	return out, err
}

func (r *Runner) execute(ctx context.Context, uc UseCase, participants []data.Participant, args []any) (any, error) {
	if r.lock {
		defer lockAll(participants)()
	}
	return uc.Execute(ctx, participants, args...)
}

func (r *Runner) log(ctx context.Context, id string, uc UseCase, err error, elapsed time.Duration) {
	attrs := []any{
		slog.String("interaction_id", id),
		slog.String("usecase", uc.Name),
		slog.Duration("elapsed", elapsed),
	}
	if err == nil {
		r.logger.InfoContext(ctx, "interaction completed", attrs...)
		return
	}
	attrs = append(attrs,
		slog.String("code", errors.CodeOf(err)),
		slog.String("category", string(errors.CategoryOf(err))),
		slog.String("error", err.Error()))
	r.logger.WarnContext(ctx, "interaction failed", attrs...)
}

func (r *Runner) record(ctx context.Context, id string, uc UseCase, initiator string,
	participants []data.Participant, err error, started, finished time.Time) {
	if r.recorder == nil {
		return
	}
	entry := journal.Entry{
		ID:            uuid.NewString(),
		InteractionID: id,
		UseCase:       uc.Name,
		Method:        uc.Method,
		Initiator:     initiator,
		Status:        journal.StatusOK,
		StartedAt:     started,
		FinishedAt:    finished,
	}
	for _, p := range participants {
		if p != nil {
			entry.ParticipantIDs = append(entry.ParticipantIDs, p.ID())
		}
	}
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.ErrorCode = errors.CodeOf(err)
		entry.ErrorCategory = string(errors.CategoryOf(err))
		entry.Error = err.Error()
	}
	if recErr := r.recorder.Record(ctx, entry); recErr != nil {
		r.logger.ErrorContext(ctx, "journal record failed",
			slog.String("interaction_id", id),
			slog.String("error", recErr.Error()))
	}
}

// lockAll locks each distinct lockable participant in id order and returns
// the matching unlock function.
func lockAll(participants []data.Participant) func() {
	seen := make(map[string]bool, len(participants))
	type entry struct {
		id string
		l  sync.Locker
	}
	var lockers []entry
	for _, p := range participants {
		l, ok := p.(sync.Locker)
		if !ok || seen[p.ID()] {
			continue
		}
		seen[p.ID()] = true
		lockers = append(lockers, entry{id: p.ID(), l: l})
	}
	sort.Slice(lockers, func(i, j int) bool { return lockers[i].id < lockers[j].id })
	for _, e := range lockers {
		e.l.Lock()
	}
	return func() {
		for i := len(lockers) - 1; i >= 0; i-- {
			lockers[i].l.Unlock()
		}
	}
}
