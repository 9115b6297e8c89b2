// Command atlas is a tool for working with compiled Atlas bytecode:
// running, optimizing, and disassembling .atb files.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	logLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "atlas",
		Short:         "Execution backend for the Atlas language",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level (trace, debug, info, warn, error)")

	root.AddCommand(newRunCommand())
	root.AddCommand(newDisCommand())
	root.AddCommand(newOptCommand())

	if err := root.Execute(); err != nil {
		log := logger()
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
