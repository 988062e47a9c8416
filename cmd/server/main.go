package main

import (
	"os"

	"github.com/GomuGomuu/ope-ope/internal/log"
)

// main is the entry point of the program. With no subcommand it runs the HTTP server.
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.ErrorLogger.Error().Err(err).Msg("🔥 Command failed")
		os.Exit(1)
	}
}
