package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Delay from testNow until [00:30, 00:45) finalises at 00:55.
const firstDelay = 5*time.Minute + 35*time.Second + 958*time.Millisecond

type timerRun struct {
	timer  *pipeline.FinalisationTimer
	chunks chan pipeline.ChunkResult
	done   chan error
	cancel context.CancelFunc
}

func startTimer(t *testing.T, f *fakeFetcher, opts pipeline.TimerOptions, cb pipeline.ChunkCallback) *timerRun {
	t.Helper()
	run := &timerRun{
		timer:  pipeline.NewFinalisationTimer(f, domain.FormatBlitzenV3, 15*time.Minute, opts, discardLogger(), newTestMetrics()),
		chunks: make(chan pipeline.ChunkResult, 8),
		done:   make(chan error, 1),
	}
	if cb == nil {
		cb = func(_ context.Context, r pipeline.ChunkResult) { run.chunks <- r }
	}

	ctx, cancel := context.WithCancel(context.Background())
	run.cancel = cancel
	t.Cleanup(cancel)
	go func() {
		run.done <- run.timer.Run(ctx, testQuery(at(0, 0), time.Time{}), cb)
	}()
	return run
}

func blockUntilArmed(t *testing.T, fc *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
}

func (r *timerRun) nextChunk(t *testing.T) pipeline.ChunkResult {
	t.Helper()
	select {
	case c := <-r.chunks:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no chunk delivered")
		return pipeline.ChunkResult{}
	}
}

func (r *timerRun) noChunk(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.chunks:
		t.Fatalf("unexpected chunk %s", c.Interval())
	default:
	}
}

func (r *timerRun) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not stop")
		return nil
	}
}

func TestFinalisationTimer_FixedDelay(t *testing.T) {
	fc := useFakeClock(t)
	run := startTimer(t, &fakeFetcher{}, pipeline.TimerOptions{CallbackMode: pipeline.CallbackSync}, nil)

	blockUntilArmed(t, fc)
	assert.Equal(t, pipeline.StateWaiting, run.timer.State())

	fc.Advance(firstDelay - time.Millisecond)
	run.noChunk(t)
	fc.Advance(time.Millisecond)

	first := run.nextChunk(t)
	assert.Equal(t, at(0, 30), first.Start)
	assert.Equal(t, at(0, 45), first.End)
	assert.Equal(t, 1, first.Collection.Len())

	blockUntilArmed(t, fc)
	fc.Advance(25*time.Minute - time.Millisecond)
	run.noChunk(t)
	fc.Advance(time.Millisecond)

	second := run.nextChunk(t)
	assert.Equal(t, at(0, 45), second.Start)
	assert.Equal(t, at(1, 0), second.End)
	assert.Equal(t, at(1, 20), fc.Now())

	require.NoError(t, run.stop(t))
	assert.Equal(t, pipeline.StateStopped, run.timer.State())
}

func TestFinalisationTimer_Aligned(t *testing.T) {
	fc := useFakeClock(t)
	run := startTimer(t, &fakeFetcher{}, pipeline.TimerOptions{
		CallbackMode: pipeline.CallbackSync,
		Reschedule:   pipeline.RescheduleAligned,
	}, nil)

	blockUntilArmed(t, fc)
	fc.Advance(firstDelay)
	run.nextChunk(t)

	blockUntilArmed(t, fc)
	fc.Advance(15*time.Minute - time.Millisecond)
	run.noChunk(t)
	fc.Advance(time.Millisecond)

	second := run.nextChunk(t)
	assert.Equal(t, at(0, 45), second.Start)
	assert.Equal(t, at(1, 10), fc.Now())

	require.NoError(t, run.stop(t))
}

func TestFinalisationTimer_FailureContinues(t *testing.T) {
	fc := useFakeClock(t)
	boom := &domain.HTTPError{Status: 502}
	failed := make(chan domain.Interval, 1)
	run := startTimer(t, &fakeFetcher{fail: map[time.Time]error{at(0, 30): boom}}, pipeline.TimerOptions{
		CallbackMode: pipeline.CallbackSync,
		OnError: func(iv domain.Interval, err error) {
			assert.ErrorIs(t, err, boom)
			failed <- iv
		},
	}, nil)

	blockUntilArmed(t, fc)
	fc.Advance(firstDelay)

	select {
	case iv := <-failed:
		assert.Equal(t, at(0, 30), iv.Start)
	case <-time.After(5 * time.Second):
		t.Fatal("OnError not called")
	}
	run.noChunk(t)

	blockUntilArmed(t, fc)
	fc.Advance(25 * time.Minute)
	next := run.nextChunk(t)
	assert.Equal(t, at(0, 45), next.Start)

	require.NoError(t, run.stop(t))
}

func TestFinalisationTimer_FailureStops(t *testing.T) {
	fc := useFakeClock(t)
	boom := &domain.HTTPError{Status: 502}
	run := startTimer(t, &fakeFetcher{fail: map[time.Time]error{at(0, 30): boom}}, pipeline.TimerOptions{
		FailurePolicy: pipeline.FailureStop,
	}, nil)

	blockUntilArmed(t, fc)
	fc.Advance(firstDelay)

	select {
	case err := <-run.done:
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("timer kept running after failure")
	}
	assert.Equal(t, pipeline.StateStopped, run.timer.State())
}

func TestFinalisationTimer_AsyncCallbackDoesNotDelaySchedule(t *testing.T) {
	fc := useFakeClock(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	run := startTimer(t, &fakeFetcher{}, pipeline.TimerOptions{}, func(context.Context, pipeline.ChunkResult) {
		close(entered)
		<-release
	})

	blockUntilArmed(t, fc)
	fc.Advance(firstDelay)
	<-entered

	// The next wait is armed while the callback is still running.
	blockUntilArmed(t, fc)

	run.cancel()
	select {
	case <-run.done:
		t.Fatal("Run returned before the callback finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-run.done)
}

func TestFinalisationTimer_CancelWhileWaiting(t *testing.T) {
	fc := useFakeClock(t)
	f := &fakeFetcher{}
	run := startTimer(t, f, pipeline.TimerOptions{}, nil)

	blockUntilArmed(t, fc)
	require.NoError(t, run.stop(t))
	assert.Empty(t, f.Calls())
	assert.Equal(t, pipeline.StateStopped, run.timer.State())
}

func TestFinalisationTimer_RejectsSecondRun(t *testing.T) {
	fc := useFakeClock(t)
	run := startTimer(t, &fakeFetcher{}, pipeline.TimerOptions{}, nil)
	blockUntilArmed(t, fc)

	err := run.timer.Run(context.Background(), testQuery(at(0, 0), time.Time{}), func(context.Context, pipeline.ChunkResult) {})
	assert.ErrorContains(t, err, "already running")

	require.NoError(t, run.stop(t))
}

func TestFinalisationTimer_Readiness(t *testing.T) {
	fc := useFakeClock(t)
	run := startTimer(t, &fakeFetcher{}, pipeline.TimerOptions{CallbackMode: pipeline.CallbackSync}, nil)

	blockUntilArmed(t, fc)
	require.Error(t, run.timer.CheckReadiness(context.Background()))

	fc.Advance(firstDelay)
	run.nextChunk(t)
	require.NoError(t, run.timer.CheckReadiness(context.Background()))

	require.NoError(t, run.stop(t))
}

func TestFinalisationTimer_RequiresStart(t *testing.T) {
	useFakeClock(t)
	timer := pipeline.NewFinalisationTimer(&fakeFetcher{}, domain.FormatBlitzenV3, 15*time.Minute,
		pipeline.TimerOptions{}, discardLogger(), newTestMetrics())

	err := timer.Run(context.Background(), testQuery(time.Time{}, time.Time{}), func(context.Context, pipeline.ChunkResult) {})
	require.Error(t, err)
	assert.Equal(t, pipeline.StateIdle, timer.State())
}
