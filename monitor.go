package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DeviceLister returns the names of the currently connected Bluetooth
// devices.
type DeviceLister interface {
	ConnectedDevices(ctx context.Context) ([]string, error)
}

// Indicator shows the presence state to the user. SetState must be safe to
// call from any goroutine.
type Indicator interface {
	SetState(state PresenceState) error
}

// Clock is the monitor's only source of waiting.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// monitor polls for the target device and drives the indicator. Only the
// goroutine running Run writes presence state.
type monitor struct {
	devices   DeviceLister
	indicator Indicator
	prefix    string
	present   time.Duration // sleep after a Present cycle
	absent    time.Duration // sleep after an Absent cycle
	clock     Clock
	log       zerolog.Logger

	wake chan struct{}
	last atomic.Pointer[Observation]
}

func newMonitor(cfg Config, devices DeviceLister, indicator Indicator, clock Clock, logger zerolog.Logger) *monitor {
	return &monitor{
		devices:   devices,
		indicator: indicator,
		prefix:    cfg.Prefix,
		present:   cfg.PresentInterval,
		absent:    cfg.AbsentInterval,
		clock:     clock,
		log:       logger.With().Str("component", "monitor").Logger(),
		wake:      make(chan struct{}, 1),
	}
}

// interval is how long to wait after a cycle that ended in state.
func (m *monitor) interval(state PresenceState) time.Duration {
	if state == StatePresent {
		return m.present
	}
	return m.absent
}

// poll runs one enumerate/evaluate/emit cycle. Enumeration and indicator
// failures are logged and the cycle counts as Absent.
func (m *monitor) poll(ctx context.Context) Observation {
	obs := Observation{State: StateAbsent, CheckedAt: m.clock.Now()}

	names, err := m.devices.ConnectedDevices(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("device enumeration failed, treating as absent")
		obs.Error = err.Error()
	} else {
		device, ok := matchDevice(names, m.prefix)
		obs.State = stateFor(ok)
		obs.Device = device
		obs.Connected = len(names)
	}

	if err := m.indicator.SetState(obs.State); err != nil {
		m.log.Warn().Err(err).Str("state", string(obs.State)).Msg("indicator update failed")
	}

	prev := m.last.Swap(&obs)
	if prev == nil || prev.State != obs.State {
		m.log.Info().
			Str("state", string(obs.State)).
			Str("device", obs.Device).
			Msg("presence changed")
	} else {
		m.log.Debug().
			Str("state", string(obs.State)).
			Int("connected", obs.Connected).
			Msg("poll")
	}
	return obs
}

// Run polls until ctx is cancelled.
func (m *monitor) Run(ctx context.Context) error {
	for {
		obs := m.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.interval(obs.State)):
		case <-m.wake:
			m.log.Debug().Msg("woken for early poll")
		}
	}
}

// Refresh asks a sleeping monitor to poll now. Multiple calls before the
// next poll collapse into one.
func (m *monitor) Refresh() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Last returns the latest observation, or nil before the first poll.
func (m *monitor) Last() *Observation {
	return m.last.Load()
}
