package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/logger"
	"github.com/wolfeidau/pagepack/internal/pages"
	"github.com/wolfeidau/pagepack/internal/resolve"
	"github.com/wolfeidau/pagepack/internal/transform"
)

// PagesCmd loads every page module eagerly and lists where each resolved.
type PagesCmd struct {
	Dir    string `help:"directory holding the page modules" default:"src/jsx/pages" type:"path"`
	Barrel string `help:"write the module re-exporting every page to this path" type:"path"`

	Out io.Writer `kong:"-"`
}

func (c *PagesCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	fs := afero.NewOsFs()
	resolver := resolve.New(fs, c.Dir, config.DefaultExtensions, nil)

	engine, err := transform.NewEngine(pageDescriptor(c.Dir), transform.Options{})
	if err != nil {
		return err
	}

	agg, err := pages.Load(ctx, pages.NewTable(fs, resolver, engine, c.Dir))
	if err != nil {
		return err
	}

	w := output(c.Out)
	for _, name := range agg.Names() {
		m, err := agg.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-12s %s\n", name, m.Path)
	}

	if c.Barrel == "" {
		return nil
	}

	data, err := agg.Barrel(filepath.Dir(c.Barrel))
	if err != nil {
		return fmt.Errorf("failed to render barrel: %w", err)
	}
	if err := afero.WriteFile(fs, c.Barrel, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write barrel: %w", err)
	}

	log.Info().Str("path", c.Barrel).Msg("Wrote page barrel")
	return nil
}

// pageDescriptor compiles every script under dir with JSX enabled.
func pageDescriptor(dir string) *config.Descriptor {
	return &config.Descriptor{
		Context: dir,
		Rules: []config.Rule{{
			Test: `\.[jt]sx?$`,
			Use: []config.Stage{{
				Loader:  "babel",
				Options: map[string]any{"presets": []any{"react"}},
			}},
		}},
	}
}
