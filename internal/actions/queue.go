// Package actions implements the single-consumer command queue behind the
// web front end. Submit returns as soon as the action is queued; one worker
// goroutine executes actions strictly one at a time and records the outcome
// of the most recent one for pollers.
package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"deskhogd/internal/eventbus"
	"deskhogd/internal/queue"
)

const (
	// MaxParams is the number of string parameters an action carries.
	MaxParams = 3
	// DefaultMaxSize is the number of actions that may wait for the worker.
	DefaultMaxSize = 5
	// DefaultPollInterval bounds how long the worker sleeps before checking
	// for shutdown.
	DefaultPollInterval = 100 * time.Millisecond
)

// Action is a queued unit of work. It is immutable once submitted.
type Action struct {
	ID          string
	Kind        Kind
	Params      [MaxParams]string
	SubmittedAt time.Time
}

// Param returns parameter i or "" when out of range.
func (a Action) Param(i int) string {
	if i < 0 || i >= MaxParams {
		return ""
	}
	return a.Params[i]
}

// Result is what a handler reports back.
type Result struct {
	OK      bool
	Message string
}

// Succeeded builds a successful Result.
func Succeeded(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

// Failed builds a failed Result.
func Failed(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Handler executes one action. It runs on the worker goroutine; ctx is
// cancelled when the queue stops.
type Handler func(ctx context.Context, a Action) Result

// Outcome describes the most recently completed action.
type Outcome struct {
	ActionID    string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	CompletedAt time.Time `json:"completed_at"`
}

// Snapshot is a consistent view of the queue for pollers. Every accepted
// action is counted in exactly one of Pending, InProgress or Completed.
type Snapshot struct {
	InProgress   Kind
	InProgressID string
	Pending      int
	Capacity     int
	Completed    uint64
	Outcome      Outcome
}

// Config configures a Queue.
type Config struct {
	MaxSize      int
	PollInterval time.Duration
	Publisher    eventbus.Publisher
	Logger       zerolog.Logger
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Queue is the bounded command queue.
type Queue struct {
	ch   *queue.Bounded[Action]
	poll time.Duration
	pub  eventbus.Publisher
	log  zerolog.Logger

	mu           sync.Mutex
	handlers     [kindCount]Handler
	inProgress   Kind
	inProgressID string
	// pending counts accepted actions the worker has not claimed yet,
	// including one it has popped but not started.
	pending   int
	completed uint64
	outcome   Outcome
	state     state
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a queue. Actions submitted before Start wait until the worker
// runs.
func New(cfg Config) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Publisher == nil {
		cfg.Publisher = eventbus.Discard
	}
	return &Queue{
		ch:   queue.NewBounded[Action](cfg.MaxSize),
		poll: cfg.PollInterval,
		pub:  cfg.Publisher,
		log:  cfg.Logger.With().Str("component", "actions").Logger(),
	}
}

// Handle installs h for kind k, replacing any previous handler.
func (q *Queue) Handle(k Kind, h Handler) {
	if !k.valid() {
		panic(fmt.Sprintf("actions: cannot register handler for %v", k))
	}
	q.mu.Lock()
	q.handlers[k] = h
	q.mu.Unlock()
}

// Submit queues an action and returns immediately. It fails with
// ErrQueueFull when MaxSize actions are already waiting and with
// ErrNotRunning when the queue is uninitialised or stopped.
func (q *Queue) Submit(k Kind, params ...string) (Action, error) {
	if q == nil || q.ch == nil {
		return Action{}, ErrNotRunning
	}
	if !k.valid() {
		rejectedTotal.WithLabelValues("unknown_kind").Inc()
		return Action{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	if len(params) > MaxParams {
		rejectedTotal.WithLabelValues("too_many_params").Inc()
		return Action{}, fmt.Errorf("%w: %d > %d", ErrTooManyParams, len(params), MaxParams)
	}
	a := Action{ID: ulid.Make().String(), Kind: k, SubmittedAt: time.Now()}
	copy(a.Params[:], params)

	q.mu.Lock()
	if q.state == stateStopped {
		q.mu.Unlock()
		rejectedTotal.WithLabelValues("not_running").Inc()
		return Action{}, ErrNotRunning
	}
	if q.pending >= q.ch.Cap() || !q.ch.TryPush(a) {
		q.mu.Unlock()
		rejectedTotal.WithLabelValues("queue_full").Inc()
		q.log.Warn().Str("kind", k.String()).Int("max", q.ch.Cap()).Msg("action queue full")
		return Action{}, ErrQueueFull
	}
	q.pending++
	depth := q.pending
	q.mu.Unlock()

	submittedTotal.WithLabelValues(k.String()).Inc()
	queueDepth.Set(float64(depth))
	q.log.Debug().Str("id", a.ID).Str("kind", k.String()).Msg("action queued")
	return a, nil
}

// Snapshot returns the in-progress kind, pending count and last outcome.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{
		InProgress:   q.inProgress,
		InProgressID: q.inProgressID,
		Pending:      q.pending,
		Capacity:     q.ch.Cap(),
		Completed:    q.completed,
		Outcome:      q.outcome,
	}
}

// Start launches the worker. It is a no-op when already running and fails
// once the queue has been stopped.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state {
	case stateRunning:
		return nil
	case stateStopped:
		return ErrNotRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	q.state = stateRunning
	go q.run(ctx, q.done)
	return nil
}

// Stop halts the worker after the current action finishes. Queued actions are
// discarded and further submissions fail with ErrNotRunning.
func (q *Queue) Stop() {
	q.mu.Lock()
	prev := q.state
	q.state = stateStopped
	cancel, done := q.cancel, q.done
	q.mu.Unlock()
	if prev != stateRunning {
		return
	}
	cancel()
	<-done
}

func (q *Queue) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	q.log.Debug().Int("max", q.ch.Cap()).Msg("action worker started")
	for {
		if ctx.Err() != nil {
			return
		}
		a, ok := q.ch.Pop(ctx, q.poll)
		if !ok {
			continue
		}
		q.execute(ctx, a)
	}
}

func (q *Queue) execute(ctx context.Context, a Action) {
	q.mu.Lock()
	q.pending--
	q.inProgress = a.Kind
	q.inProgressID = a.ID
	h := q.handlers[a.Kind]
	depth := q.pending
	q.mu.Unlock()
	queueDepth.Set(float64(depth))

	start := time.Now()
	res := q.invoke(ctx, h, a)
	durationSeconds.WithLabelValues(a.Kind.String()).Observe(time.Since(start).Seconds())

	out := Outcome{
		ActionID:    a.ID,
		Kind:        a.Kind,
		Success:     res.OK,
		Message:     res.Message,
		CompletedAt: time.Now(),
	}
	q.mu.Lock()
	q.outcome = out
	q.completed++
	q.inProgress = KindNone
	q.inProgressID = ""
	q.mu.Unlock()

	result := "success"
	ev := q.log.Info()
	if !res.OK {
		result = "failure"
		ev = q.log.Warn()
	}
	completedTotal.WithLabelValues(a.Kind.String(), result).Inc()
	ev.Str("id", a.ID).Str("kind", a.Kind.String()).Bool("success", res.OK).Str("message", res.Message).Msg("action completed")
	q.pub.Publish(eventbus.Event{Kind: eventbus.KindActionCompleted, SubjectID: a.ID, Payload: out})
}

func (q *Queue) invoke(ctx context.Context, h Handler, a Action) (res Result) {
	if h == nil {
		return Failed("no handler registered for %s", a.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("id", a.ID).Str("kind", a.Kind.String()).Str("panic", fmt.Sprint(r)).Msg("action handler panicked")
			res = Failed("%s failed: internal error", a.Kind)
		}
	}()
	return h(ctx, a)
}
