package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errIconLoad = errors.New("load icon")

//go:embed icons/connected.png
var connectedIcon []byte

//go:embed icons/disconnected.png
var disconnectedIcon []byte

type iconSet struct {
	connected    []byte
	disconnected []byte
}

// loadIcons returns the embedded icons when dir is empty, otherwise reads
// connected.png and disconnected.png from dir.
func loadIcons(dir string) (iconSet, error) {
	if dir == "" {
		return iconSet{connected: connectedIcon, disconnected: disconnectedIcon}, nil
	}
	connected, err := readIcon(filepath.Join(dir, "connected.png"))
	if err != nil {
		return iconSet{}, err
	}
	disconnected, err := readIcon(filepath.Join(dir, "disconnected.png"))
	if err != nil {
		return iconSet{}, err
	}
	return iconSet{connected: connected, disconnected: disconnected}, nil
}

func readIcon(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errIconLoad, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", errIconLoad, path)
	}
	return data, nil
}

func (s iconSet) forState(state PresenceState) []byte {
	if state == StatePresent {
		return s.connected
	}
	return s.disconnected
}
