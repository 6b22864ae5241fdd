package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := loadConfig(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: log config: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "run":
		err = runTray(cfg, logger)
	case "status", "refresh":
		err = runCommand(cmd)
	case "devices":
		err = runDevices(cfg, logger)
	default:
		fmt.Fprintln(os.Stderr, "usage: hhkbtray [run|status|refresh|devices]")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
