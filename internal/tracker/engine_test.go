package tracker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeObserver lets tests drive the foreground signal directly.
type fakeObserver struct {
	sample *Sample
	idle   time.Duration
}

func (f *fakeObserver) Sample() *Sample { return f.sample }

func (f *fakeObserver) Idle() time.Duration { return f.idle }

// fakeClock drives Engine.now deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T, obs *fakeObserver) (*Engine, *fakeClock, *[]SessionEnd) {
	t.Helper()

	var ended []SessionEnd
	e := NewEngine(obs, EngineConfig{
		PollInterval:  time.Hour, // ticks are driven manually
		IdleThreshold: 60 * time.Second,
	}, func(end SessionEnd) {
		ended = append(ended, end)
	}, zerolog.Nop())

	clock := &fakeClock{t: time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)}
	e.now = clock.now
	return e, clock, &ended
}

func sampleFor(pid int, name string) *Sample {
	return &Sample{
		ProcessID:   pid,
		ProcessName: name,
		ExePath:     `C:\Apps\` + name + `\` + name + ".exe",
		WindowTitle: name,
	}
}

func TestEngineSameForegroundEmitsNothing(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	for i := 0; i < 10; i++ {
		e.tick()
		clock.advance(time.Second)
	}

	require.Empty(t, *ended, "repeated ticks on the same app must not emit sessions")
}

func TestEngineForegroundChangeClosesPrevious(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.tick()
	clock.advance(30 * time.Second)

	obs.sample = sampleFor(200, "code")
	e.tick()

	require.Len(t, *ended, 1)
	end := (*ended)[0]
	require.Equal(t, "chrome", end.ProcessName)
	require.False(t, end.Idle)
	require.Equal(t, int64(30), end.Duration())
}

func TestEngineIdleClosesExactlyOnce(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.tick()
	clock.advance(2 * time.Minute)

	// Many consecutive idle ticks close the open session once, not N times.
	obs.idle = 90 * time.Second
	for i := 0; i < 5; i++ {
		e.tick()
		clock.advance(time.Second)
	}

	require.Len(t, *ended, 1)
	end := (*ended)[0]
	require.True(t, end.Idle)
	require.Equal(t, "chrome", end.ProcessName)
}

func TestEngineResumesTrackingAfterIdle(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.tick()
	clock.advance(time.Minute)

	obs.idle = 90 * time.Second
	e.tick()
	require.Len(t, *ended, 1)

	// Activity returns; a fresh session opens and closes normally.
	obs.idle = 0
	e.tick()
	clock.advance(20 * time.Second)
	obs.sample = sampleFor(200, "code")
	e.tick()

	require.Len(t, *ended, 2)
	require.False(t, (*ended)[1].Idle)
	require.Equal(t, int64(20), (*ended)[1].Duration())
}

func TestEngineZeroDurationDropped(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, _, ended := newTestEngine(t, obs)

	e.tick()
	// Clock has not advanced; the switch would record a zero-second session.
	obs.sample = sampleFor(200, "code")
	e.tick()

	require.Empty(t, *ended)
}

func TestEngineIgnoredProcesses(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "Explorer")}
	e, clock, ended := newTestEngine(t, obs)
	e.SetIgnoredProcesses([]string{"explorer"}, []string{" Chrome ", ""})

	// Matching is case-insensitive and trims user-supplied entries.
	e.tick()
	clock.advance(time.Minute)
	obs.sample = sampleFor(200, "CHROME")
	e.tick()
	clock.advance(time.Minute)
	e.Suspend()

	require.Empty(t, *ended, "ignored processes never open sessions")

	e2, clock2, ended2 := newTestEngine(t, &fakeObserver{sample: sampleFor(300, "code")})
	e2.SetIgnoredProcesses([]string{"explorer"}, nil)
	e2.tick()
	clock2.advance(time.Minute)
	e2.Suspend()
	require.Len(t, *ended2, 1, "non-ignored processes still tracked")
}

func TestEngineNilSampleKeepsSessionOpen(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.tick()
	clock.advance(10 * time.Second)
	obs.sample = nil
	e.tick()
	clock.advance(10 * time.Second)
	obs.sample = sampleFor(100, "chrome")
	e.tick()

	require.Empty(t, *ended, "transient sampling failures must not split the session")
}

func TestEngineWindowTitleSnapshot(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.tick()
	clock.advance(5 * time.Second)
	obs.sample = &Sample{ProcessID: 100, ProcessName: "chrome", ExePath: obs.sample.ExePath, WindowTitle: "New Tab"}
	e.tick()
	clock.advance(5 * time.Second)

	e.Suspend()

	require.Len(t, *ended, 1)
	require.Equal(t, "New Tab", (*ended)[0].WindowTitle)
}

func TestEngineSuspendResume(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.tick()
	clock.advance(time.Minute)
	e.Suspend()

	require.Len(t, *ended, 1)
	require.False(t, (*ended)[0].Idle)

	// Suspend with nothing open is a no-op.
	e.Suspend()
	require.Len(t, *ended, 1)

	e.Resume()
	e.tick()
	clock.advance(15 * time.Second)
	obs.sample = sampleFor(200, "code")
	e.tick()

	require.Len(t, *ended, 2)
	require.Equal(t, "chrome", (*ended)[1].ProcessName)
	require.Equal(t, int64(15), (*ended)[1].Duration())
}

func TestEngineStartStopIdempotent(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, ended := newTestEngine(t, obs)

	e.Start()
	e.Start()

	e.tick()
	clock.advance(time.Minute)

	e.Stop()
	e.Stop()

	require.Len(t, *ended, 1, "stop closes the open session exactly once")
}

func TestEngineForegroundListeners(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome")}
	e, clock, _ := newTestEngine(t, obs)

	var changes []ForegroundChange
	e.OnForegroundChanged(func(c ForegroundChange) {
		panic("bad listener")
	})
	e.OnForegroundChanged(func(c ForegroundChange) {
		changes = append(changes, c)
	})

	e.tick()
	clock.advance(time.Second)
	obs.sample = sampleFor(200, "code")
	e.tick()

	require.Len(t, changes, 2, "panicking listener must not block the others")
	require.Equal(t, "chrome", changes[0].ProcessName)
	require.Equal(t, "code", changes[1].ProcessName)
}

func TestEngineSetIdleThreshold(t *testing.T) {
	obs := &fakeObserver{sample: sampleFor(100, "chrome"), idle: 30 * time.Second}
	e, clock, ended := newTestEngine(t, obs)

	// 30s of inactivity is under the default threshold.
	e.tick()
	clock.advance(time.Minute)
	require.Empty(t, *ended)

	e.SetIdleThreshold(20 * time.Second)
	e.tick()

	require.Len(t, *ended, 1)
	require.True(t, (*ended)[0].Idle)

	// Non-positive values are rejected.
	e.SetIdleThreshold(0)
	require.Equal(t, int64(20*time.Second), e.idleThreshold.Load())
}
