package scroll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
)

// controlledLoad is a continuation whose completion is driven by the test.
type controlledLoad struct {
	calls    atomic.Int32
	active   atomic.Int32
	overlaps atomic.Int32
	release  chan error
	ctxErrs  chan error
}

func newControlledLoad() *controlledLoad {
	return &controlledLoad{
		release: make(chan error),
		ctxErrs: make(chan error, 16),
	}
}

func (c *controlledLoad) run(ctx context.Context) error {
	c.calls.Add(1)
	if c.active.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	defer c.active.Add(-1)

	select {
	case err := <-c.release:
		return err
	case <-ctx.Done():
		c.ctxErrs <- ctx.Err()
		return ctx.Err()
	}
}

func TestNew_NilContinuationPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil) })
}

func TestTrigger_StartPerformsInitialLoad(t *testing.T) {
	load := newControlledLoad()
	// disabled: the initial fill still happens
	trig := New(load.run, NewFlag(false))

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))
	defer trig.Stop()

	require.Eventually(t, func() bool { return load.calls.Load() == 1 }, waitFor, tick)
	assert.True(t, trig.Busy().Get())
	assert.Equal(t, Loading, trig.State())

	load.release <- nil
	trig.Wait()
	assert.False(t, trig.Busy().Get())
	assert.Equal(t, Idle, trig.State())
}

func TestTrigger_StartTwice(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil)

	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	defer trig.Stop()

	assert.ErrorIs(t, trig.Start(context.Background(), make(chan Sample)), ErrAlreadyStarted)
	load.release <- nil
}

func TestTrigger_NoOverlappingContinuations(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, NewFlag(true))

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))
	defer trig.Stop()

	require.Eventually(t, func() bool { return load.calls.Load() == 1 }, waitFor, tick)

	// flood while the initial load is outstanding
	for i := 0; i < 20; i++ {
		samples <- bottom
	}
	assert.Equal(t, int32(1), load.calls.Load())

	load.release <- nil
	require.Eventually(t, func() bool { return trig.State() == Idle }, waitFor, tick)

	samples <- bottom
	require.Eventually(t, func() bool { return load.calls.Load() == 2 }, waitFor, tick)
	load.release <- nil
	trig.Wait()

	assert.Zero(t, load.overlaps.Load())
}

func TestTrigger_DisabledIgnoresBottomSamples(t *testing.T) {
	var calls atomic.Int32
	enabled := NewFlag(true)
	trig := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, enabled)

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))
	defer trig.Stop()

	trig.Wait()
	require.Eventually(t, func() bool { return trig.State() == Idle }, waitFor, tick)
	require.Equal(t, int32(1), calls.Load())

	enabled.Set(false)
	for i := 0; i < 10; i++ {
		samples <- bottom
	}
	trig.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Idle, trig.State())
}

func TestTrigger_FailureReturnsToIdle(t *testing.T) {
	boom := errors.New("boom")

	var (
		mu      sync.Mutex
		settled []error
	)
	load := newControlledLoad()
	trig := New(load.run, nil, WithOnSettle(func(err error) {
		mu.Lock()
		settled = append(settled, err)
		mu.Unlock()
	}))

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))
	defer trig.Stop()

	load.release <- boom
	require.Eventually(t, func() bool { return trig.State() == Idle }, waitFor, tick)

	// a later sample retries naturally
	samples <- bottom
	load.release <- nil
	trig.Wait()
	require.Eventually(t, func() bool { return trig.State() == Idle }, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, settled, 2)
	assert.ErrorIs(t, settled[0], boom)
	assert.NoError(t, settled[1])
}

func TestTrigger_TopSamplesDoNotLoad(t *testing.T) {
	var calls atomic.Int32
	trig := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))
	defer trig.Stop()
	trig.Wait()
	require.Eventually(t, func() bool { return trig.State() == Idle }, waitFor, tick)

	for i := 0; i < 10; i++ {
		samples <- top
	}
	trig.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestTrigger_StopCancelsOutstandingLoad(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil)

	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	require.Eventually(t, func() bool { return load.calls.Load() == 1 }, waitFor, tick)

	trig.Stop()
	trig.Stop()

	select {
	case err := <-load.ctxErrs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("continuation was not cancelled")
	}
	trig.Wait()
	assert.Equal(t, Idle, trig.State())
}

func TestTrigger_AbandonOnStop(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil, WithAbandonOnStop())

	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	require.Eventually(t, func() bool { return load.calls.Load() == 1 }, waitFor, tick)

	trig.Stop()
	select {
	case <-load.ctxErrs:
		t.Fatal("continuation must not be cancelled")
	case <-time.After(20 * time.Millisecond):
	}

	// late settle after teardown
	load.release <- nil
	trig.Wait()
	assert.Equal(t, Idle, trig.State())
}

func TestTrigger_RestartWaitsForAbandonedLoad(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil, WithAbandonOnStop())

	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	require.Eventually(t, func() bool { return load.calls.Load() == 1 }, waitFor, tick)
	trig.Stop()

	started := make(chan error, 1)
	go func() {
		started <- trig.Start(context.Background(), make(chan Sample))
	}()

	select {
	case <-started:
		t.Fatal("Start returned while the previous load was outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	load.release <- nil
	require.NoError(t, <-started)
	defer trig.Stop()

	require.Eventually(t, func() bool { return load.calls.Load() == 2 }, waitFor, tick)
	assert.Equal(t, Loading, trig.State())
	load.release <- nil
	trig.Wait()
	assert.Zero(t, load.overlaps.Load())
}

func TestTrigger_RestartAfterCancelPerformsInitialLoad(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil)

	for run := 1; run <= 3; run++ {
		require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
		require.Eventually(t, func() bool { return load.calls.Load() == int32(run) }, waitFor, tick)
		trig.Stop()
	}
	trig.Wait()
	assert.Equal(t, int32(3), load.calls.Load())
	assert.Equal(t, Idle, trig.State())
}

func TestTrigger_RestartHonoursContext(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil, WithAbandonOnStop())

	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	require.Eventually(t, func() bool { return load.calls.Load() == 1 }, waitFor, tick)
	trig.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := trig.Start(ctx, make(chan Sample))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	load.release <- nil
	trig.Wait()
	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	defer trig.Stop()
	require.Eventually(t, func() bool { return load.calls.Load() == 2 }, waitFor, tick)
	load.release <- nil
	trig.Wait()
}

func TestTrigger_WaitDuringSampleFlood(t *testing.T) {
	var calls atomic.Int32
	trig := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			samples <- Sample{ScrollTop: 100, ViewportHeight: 10, ContentHeight: 100}
		}
	}()
	for i := 0; i < 50; i++ {
		trig.Wait()
	}
	wg.Wait()

	trig.Stop()
	trig.Wait()
	assert.Equal(t, Idle, trig.State())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestTrigger_LoadMore(t *testing.T) {
	load := newControlledLoad()
	trig := New(load.run, nil)

	assert.False(t, trig.LoadMore(), "stopped trigger")

	require.NoError(t, trig.Start(context.Background(), make(chan Sample)))
	defer trig.Stop()

	assert.False(t, trig.LoadMore(), "initial load outstanding")
	load.release <- nil
	require.Eventually(t, func() bool { return trig.State() == Idle }, waitFor, tick)

	assert.True(t, trig.LoadMore())
	load.release <- nil
	trig.Wait()
	assert.Equal(t, int32(2), load.calls.Load())
}

func TestTrigger_ClosedSamplesEndsObservation(t *testing.T) {
	var calls atomic.Int32
	trig := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	samples := make(chan Sample)
	require.NoError(t, trig.Start(context.Background(), samples))
	close(samples)

	trig.Stop()
	trig.Wait()
	assert.Equal(t, int32(1), calls.Load())
}
