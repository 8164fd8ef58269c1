package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/assets"
	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/logger"
	"github.com/wolfeidau/pagepack/internal/telemetry"
	"github.com/wolfeidau/pagepack/internal/watch"
)

// BuildCmd bundles the entries of a descriptor into its output directory.
type BuildCmd struct {
	Config   string        `help:"path to the build descriptor" default:"pagepack.yaml" env:"PAGEPACK_CONFIG" type:"path"`
	Watch    bool          `help:"rebuild when sources change" default:"false" env:"PAGEPACK_WATCH"`
	Minify   bool          `help:"minify emitted bundles" default:"false" env:"PAGEPACK_MINIFY"`
	Debounce time.Duration `help:"quiet period before a rebuild in watch mode" default:"200ms" env:"PAGEPACK_DEBOUNCE"`

	Out io.Writer `kong:"-"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	defer startTelemetry(ctx, globals)()

	fs := afero.NewOsFs()

	desc, err := config.Load(fs, c.Config)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(desc, assets.WithFs(fs), assets.WithMinify(c.Minify))
	if err != nil {
		return err
	}

	log.Info().Str("config", c.Config).Str("output", desc.OutputDir()).Msg("Building")

	res, err := pipeline.Build(ctx)
	if err != nil {
		if !c.Watch {
			return fmt.Errorf("build failed: %w", err)
		}
		log.Error().Err(err).Msg("Build failed, waiting for changes")
	} else {
		c.report(res)
	}

	if !c.Watch {
		return nil
	}

	out := desc.Rel(desc.OutputDir())
	w, err := watch.New(watch.Config{
		BaseDir:  desc.Context,
		Ignore:   []string{out, out + "/**"},
		Debounce: c.Debounce,
		OnChange: func(ctx context.Context, changed []string) error {
			telemetry.GetMetrics().RebuildsTotal.Add(ctx, 1)
			res, err := pipeline.Build(ctx)
			if err != nil {
				return err
			}
			c.report(res)
			return nil
		},
	})
	if err != nil {
		return err
	}

	log.Info().Str("dir", desc.Context).Msg("Watching for changes")
	return w.Run(ctx)
}

func (c *BuildCmd) report(res *assets.Result) {
	w := output(c.Out)
	for _, f := range res.Files {
		fmt.Fprintf(w, "%8d  %s\n", len(f.Contents), f.Path)
	}
}
