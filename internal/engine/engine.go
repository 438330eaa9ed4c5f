package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
	"github.com/gyaneshwarpardhi/nodegraph/internal/controller"
	"github.com/gyaneshwarpardhi/nodegraph/internal/metrics"
)

var (
	// ErrQueueFull is returned when the command queue has no room.
	ErrQueueFull = errors.New("command queue full")
	// ErrTimeout is returned by Do when the command did not finish in time.
	// The command may still run later.
	ErrTimeout = errors.New("command timed out")
)

// Command is run on the engine goroutine with exclusive access to the
// controller.
type Command func(c *controller.Controller) (any, error)

type outcome struct {
	value any
	err   error
}

type command struct {
	name   string
	fn     Command
	result chan outcome // nil for posted commands
}

// Engine serialises every access to the controller onto one goroutine, the
// way a UI toolkit runs everything on its event thread. A ticker posts clock
// ticks onto the same queue.
type Engine struct {
	ctrl    *controller.Controller
	pool    *workerPool[*command]
	log     *slog.Logger
	timeout time.Duration

	tickC    chan time.Duration
	tickDone chan struct{}
	stopOnce sync.Once
}

// New creates an Engine using conf and starts the command loop and ticker.
func New(ctx context.Context, ctrl *controller.Controller, conf config.EngineConf, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		ctrl:     ctrl,
		log:      logger,
		timeout:  conf.CommandTimeout(),
		tickC:    make(chan time.Duration, 1),
		tickDone: make(chan struct{}),
	}
	if e.timeout <= 0 {
		e.timeout = 5 * time.Second
	}
	e.pool = newWorkerPool[*command](ctx, 1, conf.QueueDepth, e.process)
	go e.tickLoop(ctx, conf.TickInterval())
	return e
}

// Do runs fn on the engine goroutine and waits for its result.
func (e *Engine) Do(ctx context.Context, name string, fn Command) (any, error) {
	cmd := &command{name: name, fn: fn, result: make(chan outcome, 1)}
	if err := e.submit(cmd); err != nil {
		return nil, err
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	select {
	case res := <-cmd.result:
		return res.value, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w after %v", name, ErrTimeout, e.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post enqueues fn without waiting. Errors from fn are logged.
func (e *Engine) Post(name string, fn Command) error {
	return e.submit(&command{name: name, fn: fn})
}

func (e *Engine) submit(cmd *command) error {
	if !e.pool.Submit(cmd) {
		metrics.CommandsDropped.Inc()
		return fmt.Errorf("%s: %w (capacity %d)", cmd.name, ErrQueueFull, e.pool.QueueCap())
	}
	metrics.CommandsEnqueued.Inc()
	return nil
}

func (e *Engine) process(_ context.Context, cmd *command) {
	res := e.run(cmd)
	status := "success"
	if res.err != nil {
		status = "error"
		if cmd.result == nil {
			e.log.Warn("command failed", "command", cmd.name, "err", res.err)
		}
	}
	metrics.CommandsProcessed.WithLabelValues(status).Inc()
	if cmd.result != nil {
		cmd.result <- res
	}
}

func (e *Engine) run(cmd *command) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("command panicked", "command", cmd.name, "panic", r)
			res = outcome{err: fmt.Errorf("%s: panic: %v", cmd.name, r)}
		}
	}()
	v, err := cmd.fn(e.ctrl)
	return outcome{value: v, err: err}
}

// SetTickInterval changes how often clock-driven nodes advance. Zero stops
// the ticks.
func (e *Engine) SetTickInterval(d time.Duration) {
	select {
	case e.tickC <- d:
	case <-e.tickDone:
	}
}

func (e *Engine) tickLoop(ctx context.Context, interval time.Duration) {
	defer close(e.tickDone)
	var (
		ticker *time.Ticker
		ticks  <-chan time.Time
	)
	reset := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, ticks = nil, nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			ticks = ticker.C
		}
		e.log.Debug("tick interval set", "interval", d)
	}
	reset(interval)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()
	for {
		select {
		case d := <-e.tickC:
			reset(d)
		case now := <-ticks:
			// A tick that finds the queue full is skipped; the next one catches up.
			_ = e.pool.Submit(&command{name: "tick", fn: func(c *controller.Controller) (any, error) {
				return c.Tick(now), nil
			}})
		case <-ctx.Done():
			return
		}
	}
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Shutdown runs the queued commands and stops the loop.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(e.pool.Drain)
}
