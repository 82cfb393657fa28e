package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
	"github.com/goliatone/go-itrp/ratelimit"
)

const DefaultRetryDelay = time.Minute

type WorkflowService interface {
	Import(ctx context.Context, req jobs.ImportRequest) (jobs.Handle, error)
	Export(ctx context.Context, req jobs.ExportRequest) (jobs.Handle, error)
}

// Enqueuer publishes import and export requests as go-job messages.
type Enqueuer struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuer(enqueuer queue.Enqueuer) *Enqueuer {
	return &Enqueuer{enqueuer: enqueuer}
}

func (e *Enqueuer) EnqueueImport(ctx context.Context, req jobs.ImportRequest, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ImportMessage(req, idempotencyKey)
	if err != nil {
		return err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

func (e *Enqueuer) EnqueueExport(ctx context.Context, req jobs.ExportRequest, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ExportMessage(req, idempotencyKey)
	if err != nil {
		return err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

type RunnerOption func(*Runner)

func WithRetryPolicy(policy RetryPolicy) RunnerOption {
	return func(r *Runner) {
		r.policy = policy
	}
}

// WithRetryDelay sets the nack delay used for retryable failures.
func WithRetryDelay(delay time.Duration) RunnerOption {
	return func(r *Runner) {
		if delay >= 0 {
			r.retryDelay = delay
		}
	}
}

func WithHook(hook worker.Hook) RunnerOption {
	return func(r *Runner) {
		r.hook = hook
	}
}

func WithLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRunnerClock(now core.Clock) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner takes one delivery at a time off a queue and runs it through the
// import/export workflow, acking on success and nacking on failure.
type Runner struct {
	dequeuer   queue.Dequeuer
	workflow   WorkflowService
	policy     RetryPolicy
	retryDelay time.Duration
	hook       worker.Hook
	logger     core.Logger
	now        core.Clock

	mu       sync.Mutex
	attempts map[string]int
}

func NewRunner(dequeuer queue.Dequeuer, workflow WorkflowService, opts ...RunnerOption) *Runner {
	runner := &Runner{
		dequeuer:   dequeuer,
		workflow:   workflow,
		retryDelay: DefaultRetryDelay,
		logger:     glog.Nop(),
		now:        time.Now,
		attempts:   map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner
}

// RunOnce handles one delivery. Job failures are settled on the queue and
// reported through the hook; only queue errors are returned.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r == nil || r.dequeuer == nil || r.workflow == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := r.nextAttempt(key)
	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: r.now(),
	}
	r.onStart(ctx, event)

	runErr := r.execute(ctx, msg)
	event.Duration = r.now().Sub(event.StartedAt)

	if runErr == nil {
		r.clearAttempts(key)
		if err := delivery.Ack(ctx); err != nil {
			return err
		}
		r.onSuccess(ctx, event)
		return nil
	}

	opts := r.policy.NormalizeAttempt(queue.NackOptions{
		Delay:      r.retryDelay,
		Requeue:    true,
		DeadLetter: !Retryable(runErr),
		Reason:     core.ErrorMessage(runErr),
	}, attempt)
	event.Err = runErr
	event.Delay = opts.Delay

	core.LogWithLevel(ctx, r.logger, "warn", "itrp job failed", map[string]any{
		"job_id":      jobID(msg),
		"attempt":     attempt,
		"requeue":     opts.Requeue,
		"dead_letter": opts.DeadLetter,
		"error":       core.ErrorMessage(runErr),
	})
	if opts.Requeue {
		r.onRetry(ctx, event)
	} else {
		r.clearAttempts(key)
		r.onFailure(ctx, event)
	}
	return delivery.Nack(ctx, opts)
}

// Retryable is false for failures that repeat on every attempt: bad input,
// rejected uploads and unknown messages.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if ratelimit.IsRateLimited(err) || core.IsMonitorFailed(err) || core.IsClientError(err) {
		return true
	}
	return !core.IsBadInput(err) && !core.IsUploadFailed(err)
}

func (r *Runner) execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return core.NewBadInput("gojob: delivery without message", "message")
	}
	var (
		handle jobs.Handle
		err    error
	)
	switch strings.TrimSpace(msg.JobID) {
	case JobIDImport:
		req, parseErr := ParseImport(msg)
		if parseErr != nil {
			return parseErr
		}
		handle, err = r.workflow.Import(ctx, req)
	case JobIDExport:
		req, parseErr := ParseExport(msg)
		if parseErr != nil {
			return parseErr
		}
		handle, err = r.workflow.Export(ctx, req)
	default:
		return core.NewBadInput(fmt.Sprintf("gojob: unknown job id %q", msg.JobID), "job_id")
	}
	if err != nil {
		return err
	}
	core.LogWithLevel(ctx, r.logger, "info", "itrp job settled", map[string]any{
		"job_id": msg.JobID,
		"token":  handle.Token,
		"state":  handle.State,
	})
	return nil
}

func (r *Runner) nextAttempt(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[key]++
	return r.attempts[key]
}

func (r *Runner) clearAttempts(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, key)
}

func (r *Runner) onStart(ctx context.Context, event worker.Event) {
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}
}

func (r *Runner) onSuccess(ctx context.Context, event worker.Event) {
	if r.hook != nil {
		r.hook.OnSuccess(ctx, event)
	}
}

func (r *Runner) onFailure(ctx context.Context, event worker.Event) {
	if r.hook != nil {
		r.hook.OnFailure(ctx, event)
	}
}

func (r *Runner) onRetry(ctx context.Context, event worker.Event) {
	if r.hook != nil {
		r.hook.OnRetry(ctx, event)
	}
}

func attemptKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return msg.JobID + "::" + key
	}
	return fmt.Sprintf("%s::%v", msg.JobID, msg.Parameters)
}

func jobID(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.JobID
}

// LoggingHook reports worker events through a glog logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "itrp job started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "itrp job succeeded", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "itrp job failed permanently", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "itrp job scheduled for retry", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, message string, event worker.Event) {
	if h == nil {
		return
	}
	fields := map[string]any{
		"job_id":   jobID(event.Message),
		"attempt":  event.Attempt,
		"duration": event.Duration.String(),
	}
	if event.Delay > 0 {
		fields["delay"] = event.Delay.String()
	}
	if event.Err != nil {
		fields["error"] = core.ErrorMessage(event.Err)
	}
	core.LogWithLevel(ctx, h.logger, level, message, fields)
}

var (
	_ worker.Hook     = (*LoggingHook)(nil)
	_ WorkflowService = (*jobs.Workflow)(nil)
)
