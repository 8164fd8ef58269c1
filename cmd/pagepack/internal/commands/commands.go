package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pagepack/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Tracing bool
	Version string
}

// startTelemetry returns a func flushing exporters, a no-op without --tracing.
func startTelemetry(ctx context.Context, globals *Globals) func() {
	if !globals.Tracing {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, "pagepack", globals.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
