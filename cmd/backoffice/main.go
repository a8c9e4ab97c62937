// Command backoffice is the operator tool for the backoffice API: it downloads and
// restores database backups, prints profit and loss reports and issues tokens.
package main

import (
	"fmt"
	"os"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	// Stdout carries command output; logs go to stderr.
	logger.Configure(level, logger.FormatConsole, os.Stderr)

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Debug().Err(err).Str("kind", string(apperror.KindOf(err))).Msg("backoffice: command failed")
		fmt.Fprintln(os.Stderr, "error:", apperror.Message(err))
		os.Exit(1)
	}
}
