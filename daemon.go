package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fyne.io/systray"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

func socketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "hhkbtray.sock")
}

// controlServer answers status and refresh requests from the CLI.
type controlServer struct {
	mon *monitor
	log zerolog.Logger
}

func (s *controlServer) handleRequest(req IPCRequest) IPCResponse {
	switch req.Command {
	case "status":
		obs := s.mon.Last()
		if obs == nil {
			return IPCResponse{Error: "no poll has completed yet"}
		}
		return IPCResponse{Observation: obs}

	case "refresh":
		s.mon.Refresh()
		return IPCResponse{Message: "refresh requested"}

	default:
		return IPCResponse{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

func (s *controlServer) handleConn(conn net.Conn) {
	defer conn.Close()

	var req IPCRequest
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		resp := IPCResponse{Error: "invalid request: " + err.Error()}
		if err := json.NewEncoder(conn).Encode(resp); err != nil {
			s.log.Debug().Err(err).Msg("write control error response")
		}
		return
	}

	resp := s.handleRequest(req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debug().Err(err).Msg("write control response")
	}
}

// serve accepts connections until ln is closed.
func (s *controlServer) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func listenControl(path string) (net.Listener, error) {
	// Remove a stale socket left by a previous run.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return ln, nil
}

// watchConnections wakes the monitor whenever BlueZ reports a device
// connecting or disconnecting.
func watchConnections(sigCh chan *dbus.Signal, mon *monitor) {
	for sig := range sigCh {
		if isConnectionChange(sig) {
			mon.Refresh()
		}
	}
}

func runTray(cfg Config, logger zerolog.Logger) error {
	icons, err := loadIcons(cfg.IconDir)
	if err != nil {
		return err
	}

	sock := socketPath()
	ln, err := listenControl(sock)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(sock); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("socket", sock).Msg("remove control socket")
		}
	}()
	defer ln.Close()

	// BlueZ is dialed by the first poll, so a missing bus only shows as
	// absent until bluetooth.service comes up.
	bz := newBluez(cfg.Adapter, cfg.EnumerateTimeout, logger)
	defer bz.close()

	t := newTray(icons, cfg.Prefix)
	mon := newMonitor(cfg, bz, t, realClock{}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bz.onConnect = func(conn *dbus.Conn) {
		sigCh, err := subscribeConnectionChanges(conn)
		if err != nil {
			logger.Warn().Err(err).Msg("connection change signals unavailable, relying on polling")
			return
		}
		go watchConnections(sigCh, mon)
	}

	srv := &controlServer{mon: mon, log: logger.With().Str("component", "control").Logger()}
	go srv.serve(ln)

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("shutting down")
		systray.Quit()
	}()

	start := func() {
		logger.Info().
			Str("prefix", cfg.Prefix).
			Str("socket", sock).
			Msg("watching for device")
		go mon.Run(ctx)
	}
	systray.Run(t.onReady(start, logger), func() {
		cancel()
		ln.Close()
	})
	return nil
}
