package scroll

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyStarted is returned by Start on a running trigger.
var ErrAlreadyStarted = errors.New("trigger already started")

// Continuation loads the next chunk of data. It is responsible for surfacing its own
// failures; the trigger only reports them to the settle hook.
type Continuation func(ctx context.Context) error

// Option configures a Trigger.
type Option func(*Trigger)

// WithThreshold sets the bottom margin in content units.
func WithThreshold(units int) Option {
	return func(t *Trigger) {
		t.threshold = units
	}
}

// WithOnSettle registers a hook called with the continuation's result, before the
// trigger returns to Idle.
func WithOnSettle(fn func(error)) Option {
	return func(t *Trigger) {
		t.onSettle = fn
	}
}

// WithAbandonOnStop keeps an outstanding continuation running after Stop instead of
// cancelling its context. The continuation must then check liveness itself before
// touching state owned by a stopped host. A later Start waits for it to settle.
func WithAbandonOnStop() Option {
	return func(t *Trigger) {
		t.cancelOnStop = false
	}
}

// WithLogger replaces the trigger's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Trigger) {
		t.logger = logger
	}
}

// Trigger runs a continuation whenever a sample reaches the bottom of the content.
type Trigger struct {
	gate         *Gate
	load         Continuation
	threshold    int
	onSettle     func(error)
	cancelOnStop bool
	logger       zerolog.Logger

	mu       sync.Mutex
	running  bool
	starting bool
	loadCtx  context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped trigger. A nil enabled flag means always enabled.
func New(load Continuation, enabled *Flag, opts ...Option) *Trigger {
	if load == nil {
		panic("continuation cannot be nil")
	}

	t := &Trigger{
		load:         load,
		threshold:    DefaultThreshold,
		cancelOnStop: true,
		logger:       log.With().Str("component", "scroll-trigger").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.gate = NewGate(enabled, t.threshold)

	return t
}

// Start performs one load immediately, regardless of position, then observes samples
// until Stop is called, ctx is done, or samples is closed.
// A continuation left over from a previous run is waited for first, so the initial
// load always happens; Start returns ctx's error if ctx ends before it settles.
func (t *Trigger) Start(ctx context.Context, samples <-chan Sample) error {
	t.mu.Lock()
	if t.running || t.starting {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.starting = true
	t.mu.Unlock()

	if err := t.waitIdle(ctx); err != nil {
		t.mu.Lock()
		t.starting = false
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.starting = false
	observeCtx, cancel := context.WithCancel(ctx)
	t.running = true
	t.cancel = cancel
	t.done = make(chan struct{})
	if t.cancelOnStop {
		t.loadCtx = observeCtx
	} else {
		t.loadCtx = context.WithoutCancel(ctx)
	}
	loadCtx := t.loadCtx
	done := t.done
	t.mu.Unlock()

	t.logger.Debug().Int("threshold", t.gate.Threshold()).Msg("Trigger started")

	// a LoadMore racing this Begin serves as the initial load
	if t.gate.Begin() {
		t.run(loadCtx, "initial")
	}

	go t.observe(observeCtx, samples, loadCtx, done)
	return nil
}

// Stop detaches from the sample stream and waits for the observer to exit.
// It does not wait for an outstanding continuation; use Wait for that.
// Stop is safe to call on a stopped trigger.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	cancel()
	<-done

	t.logger.Debug().Msg("Trigger stopped")
}

// LoadMore starts a load regardless of scroll position. It returns false when the
// trigger is stopped or a load is already outstanding.
func (t *Trigger) LoadMore() bool {
	t.mu.Lock()
	running := t.running
	loadCtx := t.loadCtx
	t.mu.Unlock()

	if !running || !t.gate.Begin() {
		return false
	}
	t.run(loadCtx, "manual")
	return true
}

// Wait blocks until no continuation is outstanding. On a running trigger a new load
// may begin as soon as Wait returns.
func (t *Trigger) Wait() {
	_ = t.waitIdle(context.Background())
}

// Busy returns the observable busy flag.
func (t *Trigger) Busy() *Flag {
	return t.gate.Busy()
}

// State returns the state of the underlying gate.
func (t *Trigger) State() State {
	return t.gate.State()
}

func (t *Trigger) observe(ctx context.Context, samples <-chan Sample, loadCtx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			if t.gate.Observe(s) {
				t.run(loadCtx, "scroll")
			}
		}
	}
}

// run executes the continuation for a gate that has just entered Loading.
func (t *Trigger) run(ctx context.Context, reason string) {
	t.logger.Debug().Str("reason", reason).Msg("Load triggered")

	go func() {
		defer t.gate.Settle()

		err := t.load(ctx)
		if t.onSettle != nil {
			t.onSettle(err)
		}
	}()
}

// waitIdle blocks until the gate is Idle or ctx is done.
func (t *Trigger) waitIdle(ctx context.Context) error {
	busy := t.gate.Busy()
	idle := make(chan struct{})
	var once sync.Once
	unsubscribe := busy.Subscribe(func(loading bool) {
		if !loading {
			once.Do(func() { close(idle) })
		}
	})
	defer unsubscribe()

	if !busy.Get() {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
