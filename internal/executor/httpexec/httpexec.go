// Package httpexec is the default core.Executor: it runs a job by
// issuing an HTTP request to the endpoint named in the job's Target
// callable ref. Adapted from the teacher's internal/scheduler Executor
// and WorkerPool, merged into a single type that speaks the scheduler
// core's batch-oriented Executor contract instead of driving its own
// firing loop.
package httpexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/minisource/jobscheduler/internal/core"
)

// Target is the CallableRef a job scheduled through httpexec carries:
// an HTTP callback description, the Go-native equivalent of the source
// ecosystem's "module_path:object_path" string for jobs whose work is
// "call this endpoint".
type Target struct {
	Method  string
	URL     string
	Payload []byte
	Headers map[string]string
}

func (t Target) String() string { return fmt.Sprintf("%s %s", t.Method, t.URL) }

// Result is the outcome of one HTTP call.
type Result struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Err        error
}

// Config tunes the executor's concurrency and retry behavior.
type Config struct {
	// Workers bounds how many run batches execute concurrently.
	Workers int
	// RequestTimeout is applied to the underlying http.Client if one
	// isn't supplied.
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

type task struct {
	run core.Run
}

// Executor is the HTTP-callback core.Executor.
type Executor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu        sync.Mutex
	running   bool
	inFlight  map[core.JobID]int
	taskQueue chan task
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	results   chan<- core.RunResult
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithLogger attaches a *zap.Logger the executor uses to report HTTP call
// failures (spec.md §7). Omitting it leaves logging to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an Executor ready to Start.
func New(cfg Config, client *http.Client, opts ...Option) *Executor {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	e := &Executor{
		cfg:       cfg,
		client:    client,
		inFlight:  make(map[core.JobID]int),
		taskQueue: make(chan task, cfg.Workers*10),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

func (e *Executor) Start(ctx context.Context, results chan<- core.RunResult) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.results = results
	e.running = true
	e.mu.Unlock()

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return nil
}

func (e *Executor) Submit(run core.Run) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return fmt.Errorf("httpexec: not started")
	}
	if e.inFlight[run.Job.ID] >= run.Job.MaxInstances {
		e.mu.Unlock()
		return core.ErrMaxInstancesReached
	}
	e.inFlight[run.Job.ID]++
	e.mu.Unlock()

	select {
	case e.taskQueue <- task{run: run}:
		return nil
	default:
		e.mu.Lock()
		e.inFlight[run.Job.ID]--
		e.mu.Unlock()
		return fmt.Errorf("httpexec: task queue full")
	}
}

func (e *Executor) Shutdown(ctx context.Context, wait bool) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.cancel()
	close(e.taskQueue)

	if wait {
		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for t := range e.taskQueue {
		e.runBatch(t.run)
	}
}

func (e *Executor) runBatch(run core.Run) {
	defer func() {
		e.mu.Lock()
		e.inFlight[run.Job.ID]--
		e.mu.Unlock()
	}()

	for i, runTime := range run.RunTimes {
		res := e.executeOnce(run.Job)
		if res.Err != nil {
			e.logger.Error("job http call failed",
				zap.String("job_id", string(run.Job.ID)), zap.Time("run_time", runTime), zap.Error(res.Err))
		}
		done := i == len(run.RunTimes)-1
		select {
		case e.results <- core.RunResult{
			Job:         run.Job,
			RunTime:     runTime,
			ReturnValue: res,
			Err:         res.Err,
			Done:        done,
		}:
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Executor) executeOnce(job *core.Job) Result {
	target, ok := job.CallableRef.(Target)
	if !ok {
		return Result{Err: fmt.Errorf("httpexec: job %q callable ref is not an httpexec.Target", job.ID)}
	}

	var lastResult Result
	maxAttempts := e.cfg.MaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-e.ctx.Done():
				return Result{Err: e.ctx.Err()}
			case <-time.After(e.cfg.RetryDelay):
			}
		}
		lastResult = e.do(target)
		if lastResult.Err == nil {
			return lastResult
		}
		if !isRetryable(lastResult) {
			return lastResult
		}
	}
	return lastResult
}

func (e *Executor) do(target Target) Result {
	start := time.Now()

	var body io.Reader
	if len(target.Payload) > 0 {
		body = bytes.NewReader(target.Payload)
	}

	req, err := http.NewRequestWithContext(e.ctx, target.Method, target.URL, body)
	if err != nil {
		return Result{Err: fmt.Errorf("httpexec: building request: %w", err), Duration: time.Since(start)}
	}
	req.Header.Set("User-Agent", "jobscheduler/1.0")
	if len(target.Payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{Err: err, Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Err: err, Duration: time.Since(start)}
	}

	result := Result{StatusCode: resp.StatusCode, Body: respBody, Duration: time.Since(start)}
	if resp.StatusCode >= 400 {
		result.Err = fmt.Errorf("httpexec: http %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result
}

func isRetryable(r Result) bool {
	if r.StatusCode == 0 {
		return true
	}
	if r.StatusCode >= 500 || r.StatusCode == 429 {
		return true
	}
	return false
}

var _ core.Executor = (*Executor)(nil)
