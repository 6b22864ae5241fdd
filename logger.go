package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LogConfig struct {
	Level      string `yaml:"level"`
	Debug      bool   `yaml:"debug"`
	Output     string `yaml:"output"`      // "stderr" or "stdout"
	Console    bool   `yaml:"console"`     // human-readable instead of JSON
	TimeFormat string `yaml:"time_format"` // Go layout, defaults to RFC3339
}

// initLogger configures the global zerolog logger and returns it.
func initLogger(cfg LogConfig) (zerolog.Logger, error) {
	var output io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		output = os.Stdout
	}
	logger, err := buildLogger(cfg, output)
	if err != nil {
		return zerolog.Nop(), err
	}
	log.Logger = logger
	return logger, nil
}

func buildLogger(cfg LogConfig, output io.Writer) (zerolog.Logger, error) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat, NoColor: true}
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}
