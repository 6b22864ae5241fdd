package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/rs/zerolog"
)

func ipcCall(req IPCRequest) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath())
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to tray: %w (is `hhkbtray run` running?)", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

func runCommand(command string) error {
	resp, err := ipcCall(IPCRequest{Command: command})
	if err != nil {
		return err
	}
	return writeResponse(os.Stdout, resp)
}

// writeResponse prints the observation as JSON, or the acknowledgement for
// commands that carry none.
func writeResponse(w io.Writer, resp IPCResponse) error {
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	if resp.Observation == nil {
		_, err := fmt.Fprintln(w, resp.Message)
		return err
	}
	return json.NewEncoder(w).Encode(resp.Observation)
}

type deviceListing struct {
	Name    string `json:"name"`
	Matches bool   `json:"matches"`
}

// runDevices queries BlueZ once without a running tray.
func runDevices(cfg Config, logger zerolog.Logger) error {
	bz, err := openBluez(cfg.Adapter, cfg.EnumerateTimeout, logger)
	if err != nil {
		return err
	}
	defer bz.close()

	names, err := bz.ConnectedDevices(context.Background())
	if err != nil {
		return err
	}
	return writeDevices(os.Stdout, names, cfg.Prefix)
}

func writeDevices(w io.Writer, names []string, prefix string) error {
	listing := make([]deviceListing, 0, len(names))
	for _, n := range names {
		_, ok := matchDevice([]string{n}, prefix)
		listing = append(listing, deviceListing{Name: n, Matches: ok})
	}
	return json.NewEncoder(w).Encode(listing)
}
