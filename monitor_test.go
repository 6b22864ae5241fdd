package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLister returns one scripted result per call, repeating the last one.
type fakeLister struct {
	results []listResult
	calls   int
}

type listResult struct {
	names []string
	err   error
}

func (f *fakeLister) ConnectedDevices(context.Context) ([]string, error) {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].names, f.results[i].err
}

type fakeIndicator struct {
	states []PresenceState
	err    error
}

func (f *fakeIndicator) SetState(s PresenceState) error {
	f.states = append(f.states, s)
	return f.err
}

// fakeClock records every wait. Waits fire immediately until stopAfter of
// them have been requested, then cancel is called and the wait never fires.
type fakeClock struct {
	now       time.Time
	waits     []time.Duration
	stopAfter int
	cancel    context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	if len(c.waits) >= c.stopAfter {
		c.cancel()
		return make(chan time.Time)
	}
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.PresentInterval = 10 * time.Second
	cfg.AbsentInterval = 500 * time.Millisecond
	return cfg
}

// runCycles runs the monitor for the given number of cycles.
func runCycles(t *testing.T, lister DeviceLister, ind *fakeIndicator, cycles int) (*monitor, *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &fakeClock{now: time.Unix(1700000000, 0), stopAfter: cycles, cancel: cancel}
	mon := newMonitor(testConfig(), lister, ind, clock, zerolog.Nop())
	err := mon.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	return mon, clock
}

func TestMonitorScenarios(t *testing.T) {
	enumErr := errors.New("org.bluez.Error.NotReady")
	tests := []struct {
		name     string
		result   listResult
		state    PresenceState
		device   string
		interval time.Duration
	}{
		{"target connected", listResult{names: []string{"HHKB-Hybrid_ABC123"}}, StatePresent, "HHKB-Hybrid_ABC123", 10 * time.Second},
		{"other devices only", listResult{names: []string{"AirPods Pro", "Mouse"}}, StateAbsent, "", 500 * time.Millisecond},
		{"nothing connected", listResult{names: []string{}}, StateAbsent, "", 500 * time.Millisecond},
		{"enumeration fails", listResult{err: enumErr}, StateAbsent, "", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &fakeIndicator{}
			mon, clock := runCycles(t, &fakeLister{results: []listResult{tt.result}}, ind, 1)

			assert.Equal(t, []PresenceState{tt.state}, ind.states)
			assert.Equal(t, []time.Duration{tt.interval}, clock.waits)

			obs := mon.Last()
			require.NotNil(t, obs)
			assert.Equal(t, tt.state, obs.State)
			assert.Equal(t, tt.device, obs.Device)
			assert.Equal(t, clock.now, obs.CheckedAt)
			if tt.result.err != nil {
				assert.Contains(t, obs.Error, "NotReady")
			} else {
				assert.Empty(t, obs.Error)
			}
		})
	}
}

func TestMonitorKeepsPollingAfterEnumerationFailure(t *testing.T) {
	lister := &fakeLister{results: []listResult{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{names: []string{"HHKB-Hybrid_ABC123"}},
	}}
	ind := &fakeIndicator{}
	_, clock := runCycles(t, lister, ind, 3)

	assert.Equal(t, 3, lister.calls)
	assert.Equal(t, []PresenceState{StateAbsent, StateAbsent, StatePresent}, ind.states)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 10 * time.Second}, clock.waits)
}

func TestMonitorEmitsEveryCycle(t *testing.T) {
	lister := &fakeLister{results: []listResult{{names: []string{"HHKB-Hybrid_X"}}}}
	ind := &fakeIndicator{}
	_, clock := runCycles(t, lister, ind, 3)

	// Same input, same output, emitted each time.
	assert.Equal(t, []PresenceState{StatePresent, StatePresent, StatePresent}, ind.states)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, clock.waits)
}

func TestMonitorFollowsDisconnect(t *testing.T) {
	lister := &fakeLister{results: []listResult{
		{names: []string{"HHKB-Hybrid_X"}},
		{names: []string{"Mouse"}},
	}}
	ind := &fakeIndicator{}
	mon, clock := runCycles(t, lister, ind, 2)

	assert.Equal(t, []PresenceState{StatePresent, StateAbsent}, ind.states)
	assert.Equal(t, []time.Duration{10 * time.Second, 500 * time.Millisecond}, clock.waits)
	assert.Equal(t, 1, mon.Last().Connected)
}

func TestMonitorSurvivesIndicatorFailure(t *testing.T) {
	lister := &fakeLister{results: []listResult{{names: []string{"HHKB-Hybrid_X"}}}}
	ind := &fakeIndicator{err: errIndicatorUpdate}
	mon, clock := runCycles(t, lister, ind, 2)

	assert.Len(t, ind.states, 2)
	assert.Len(t, clock.waits, 2)
	assert.Equal(t, StatePresent, mon.Last().State)
}

func TestMonitorRefreshWakesSleep(t *testing.T) {
	lister := &fakeLister{results: []listResult{{names: nil}}}
	ind := &fakeIndicator{}
	mon := newMonitor(testConfig(), lister, ind, &blockingClock{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	require.Eventually(t, func() bool { return mon.Last() != nil }, time.Second, time.Millisecond)
	mon.Refresh()
	require.Eventually(t, func() bool { return mon.Last().CheckedAt.Equal(time.Unix(2, 0)) }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestMonitorRefreshDoesNotBlock(t *testing.T) {
	mon := newMonitor(testConfig(), &fakeLister{}, &fakeIndicator{}, realClock{}, zerolog.Nop())
	mon.Refresh()
	mon.Refresh()
	mon.Refresh()
	assert.Len(t, mon.wake, 1)
	assert.Nil(t, mon.Last())
}

// blockingClock never fires; Now advances one second per call.
type blockingClock struct {
	ticks int64
}

func (c *blockingClock) Now() time.Time {
	c.ticks++
	return time.Unix(c.ticks, 0)
}

func (c *blockingClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}
