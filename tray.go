package main

import (
	"errors"
	"fmt"
	"sync"

	"fyne.io/systray"
	"github.com/rs/zerolog"
)

var errIndicatorUpdate = errors.New("update indicator")

// tray is the Indicator backed by the system tray. The setters and quit
// default to the systray package, which may be called from any goroutine.
type tray struct {
	icons  iconSet
	prefix string

	setIcon    func([]byte)
	setTooltip func(string)
	quit       func()

	mu      sync.Mutex
	current PresenceState
}

func newTray(icons iconSet, prefix string) *tray {
	return &tray{
		icons:      icons,
		prefix:     prefix,
		setIcon:    systray.SetIcon,
		setTooltip: systray.SetTooltip,
		quit:       systray.Quit,
	}
}

// SetState swaps the icon when state differs from what is shown. Repeating
// the current state is a no-op.
func (t *tray) SetState(state PresenceState) error {
	if state != StatePresent && state != StateAbsent {
		return fmt.Errorf("%w: unknown state %q", errIndicatorUpdate, state)
	}
	icon := t.icons.forState(state)
	if len(icon) == 0 {
		return fmt.Errorf("%w: no icon for state %q", errIndicatorUpdate, state)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == state {
		return nil
	}
	t.setIcon(icon)
	t.setTooltip(t.tooltip(state))
	t.current = state
	return nil
}

func (t *tray) tooltip(state PresenceState) string {
	if state == StatePresent {
		return t.prefix + " connected"
	}
	return t.prefix + " not connected"
}

// onReady builds the menu and shows the neutral icon until the first poll.
// start runs once the tray is up.
func (t *tray) onReady(start func(), logger zerolog.Logger) func() {
	return func() {
		systray.SetTitle("hhkbtray")
		if err := t.SetState(StateAbsent); err != nil {
			logger.Error().Err(err).Msg("set initial tray icon")
		}
		quit := systray.AddMenuItem("Quit", "Quit hhkbtray")
		go t.quitOnClick(quit.ClickedCh)
		start()
	}
}

// quitOnClick ends the tray event loop on the first click.
func (t *tray) quitOnClick(clicked <-chan struct{}) {
	if _, ok := <-clicked; ok {
		t.quit()
	}
}
