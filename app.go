package logstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/logstream/checkpoint"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/processor"
	"github.com/hugolhafner/logstream/runner"
	"github.com/hugolhafner/logstream/sink"
	"github.com/hugolhafner/logstream/source"
)

const Version = "v0.1.0" // x-release-please-version

var (
	ErrAlreadyRunning = errors.New("application is already running")
	ErrClosed         = errors.New("application is closed")
)

// Application supervises the stream processor. A runner that fails is
// replaced by a fresh one that resumes from the checkpoint store, up to
// Config.MaxRestarts times.
type Application struct {
	source    source.Source
	sink      sink.Sink
	store     checkpoint.Store
	processor processor.Processor

	config Config
	logger logger.Logger

	mu        sync.Mutex
	running   bool
	runner    *runner.Runner
	restarts  int
	closeOnce sync.Once
	closedCh  chan struct{}
}

func NewApplication(
	src source.Source, snk sink.Sink, store checkpoint.Store, proc processor.Processor, opts ...ConfigOption,
) (*Application, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return NewApplicationWithConfig(src, snk, store, proc, config)
}

func NewApplicationWithConfig(
	src source.Source, snk sink.Sink, store checkpoint.Store, proc processor.Processor, config Config,
) (*Application, error) {
	if src == nil || snk == nil || store == nil || proc == nil {
		return nil, errors.New("application: source, sink, checkpoint store and processor are required")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNoopLogger()
	}
	if config.RestartBackoff == nil {
		config.RestartBackoff = defaultConfig().RestartBackoff
	}

	return &Application{
		source:    src,
		sink:      snk,
		store:     store,
		processor: proc,
		config:    config,
		logger:    config.Logger.With("component", "application"),
		closedCh:  make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled, Close is called, or the runner fails
// more than MaxRestarts times. Cancellation is a clean stop and returns nil
// unless the tick in flight failed.
func (a *Application) Run(ctx context.Context) error {
	if err := a.startRunning(); err != nil {
		return err
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.closedCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	for attempt := 0; ; attempt++ {
		r, err := a.newRunner()
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}

		err = r.Run(runCtx)
		if err == nil {
			return nil
		}
		if runCtx.Err() != nil {
			// a tick that failed while stopping is still a failure
			if _, failed := runner.AsTickError(err); failed {
				a.logger.Error("Runner failed while stopping", "error", err)
				return err
			}
			return nil
		}

		if attempt >= a.config.MaxRestarts {
			a.logger.Error("Runner failed, giving up", "error", err, "restarts", attempt)
			return fmt.Errorf("runner failed after %d restarts: %w", attempt, err)
		}

		wait := a.config.RestartBackoff.Next(uint(attempt + 1))
		a.logger.Warn(
			"Runner failed, restarting from last checkpoint", "error", err,
			"attempt", attempt+1, "max_restarts", a.config.MaxRestarts, "backoff", wait.String(),
		)

		select {
		case <-runCtx.Done():
			return nil
		case <-time.After(wait):
		}

		a.mu.Lock()
		a.restarts++
		a.mu.Unlock()
	}
}

func (a *Application) newRunner() (*runner.Runner, error) {
	opts := append(
		[]runner.Option{
			runner.WithLogger(a.config.Logger),
			runner.WithTelemetry(a.config.Telemetry),
		}, a.config.RunnerOptions...,
	)

	r, err := runner.New(a.source, a.sink, a.store, a.processor, opts...)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.runner = r
	a.mu.Unlock()
	return r, nil
}

// Restarts returns how many times a failed runner has been replaced.
func (a *Application) Restarts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.restarts
}

// State returns the state of the current runner.
func (a *Application) State() runner.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runner == nil {
		return runner.StateInit
	}
	return a.runner.State()
}

func (a *Application) Close() {
	a.closeOnce.Do(
		func() {
			a.mu.Lock()
			defer a.mu.Unlock()

			a.running = false
			close(a.closedCh)
		},
	)
}

func (a *Application) startRunning() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}

	select {
	case <-a.closedCh:
		return ErrClosed
	default:
	}

	a.running = true
	return nil
}
