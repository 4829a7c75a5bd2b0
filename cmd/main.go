package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/drivetune/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})
	app := newApp(runner)

	err := app.Run(context.Background(), os.Args)
	if closeErr := runner.Close(context.Background()); closeErr != nil {
		logger.Warn("failed to close song store", "error", closeErr)
	}

	if err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
