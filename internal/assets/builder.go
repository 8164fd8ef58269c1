// Package assets runs a build: it verifies the page table, walks the module
// graph, links bundles, applies emit plugins and writes the output directory.
package assets

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/graph"
	"github.com/wolfeidau/pagepack/internal/link"
	"github.com/wolfeidau/pagepack/internal/pages"
	"github.com/wolfeidau/pagepack/internal/resolve"
	"github.com/wolfeidau/pagepack/internal/telemetry"
	"github.com/wolfeidau/pagepack/internal/transform"
)

// New validates the descriptor and prepares a pipeline. Unknown loaders and
// plugins are reported here, before anything is read.
func New(desc *config.Descriptor, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		desc: desc,
		fs:   afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(p)
	}

	desc.ApplyDefaults()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	pl, err := newPlan(desc)
	if err != nil {
		return nil, err
	}
	if p.minify && pl.minify == nil {
		pl.minify = &minifier{mangle: true, syntax: true}
	}
	p.plan = pl

	engine, err := transform.NewEngine(desc, pl.transform)
	if err != nil {
		return nil, err
	}
	p.engine = engine
	p.resolver = resolve.New(p.fs, desc.Context, desc.Resolve.Extensions, desc.AbsAll(desc.Resolve.Roots))

	return p, nil
}

// Build runs the whole pipeline in memory and writes the output directory
// only once every step has succeeded.
func (p *Pipeline) Build(ctx context.Context) (res *Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "assets.Build")
	defer span.End()

	metrics := telemetry.GetMetrics()
	start := time.Now()
	metrics.BuildsTotal.Add(ctx, 1)

	defer func() {
		metrics.BuildDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.BuildErrorsTotal.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := p.verifyPages(ctx); err != nil {
		return nil, err
	}

	g, err := graph.NewWalker(p.fs, p.desc, p.resolver, p.engine).Walk(ctx)
	if err != nil {
		return nil, err
	}
	recordModules(ctx, g)

	linkOpts := p.plan.link
	if p.plan.occurrence != nil {
		linkOpts.Order = p.plan.occurrence.order(g)
	}

	artifacts, err := link.Link(g, linkOpts)
	if err != nil {
		return nil, err
	}

	files, manifest, err := p.emit(g, artifacts)
	if err != nil {
		return nil, err
	}

	if err := p.write(ctx, files); err != nil {
		return nil, err
	}

	p.manifest = manifest

	span.SetAttributes(
		attribute.String("build.id", manifest.BuildID),
		attribute.Int("build.modules", len(g.Modules)),
		attribute.Int("build.files", len(files)),
	)

	log.Info().
		Str("build_id", manifest.BuildID).
		Int("modules", len(g.Modules)).
		Int("files", len(files)).
		Dur("duration", time.Since(start)).
		Msg("Build complete")

	return &Result{Manifest: manifest, Files: files, Graph: g}, nil
}

func (p *Pipeline) verifyPages(ctx context.Context) error {
	if p.desc.Pages == nil {
		return nil
	}

	agg, err := pages.Load(ctx, pages.NewTable(p.fs, p.resolver, p.engine, p.desc.Abs(p.desc.Pages.Dir)))
	if err != nil {
		return err
	}

	log.Debug().Strs("pages", agg.Names()).Msg("pages verified")
	return nil
}

// emit runs the emit plugins over the linked artifacts: minify, then the
// manifest, then compression.
func (p *Pipeline) emit(g *graph.Graph, artifacts []link.Artifact) ([]File, *Manifest, error) {
	if p.plan.minify != nil {
		for i := range artifacts {
			code, err := p.plan.minify.Minify(artifacts[i].Filename, artifacts[i].Contents)
			if err != nil {
				return nil, nil, err
			}
			artifacts[i].Contents = code
		}
	}

	manifest := newManifest(g, artifacts)

	files := make([]File, 0, len(artifacts))
	for _, a := range artifacts {
		files = append(files, File{Path: path.Clean(a.Filename), Contents: a.Contents})
	}

	if p.plan.compress != nil {
		compressed, err := p.plan.compress.Compress(files)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, compressed...)
	}

	if p.plan.manifest != nil {
		f, err := p.plan.manifest.File(manifest)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := manifest.Outputs[f.Path]; ok {
			return nil, nil, &config.Error{Field: "plugins.manifest.filename", Msg: fmt.Sprintf("%s is also a bundle", f.Path)}
		}
		files = append(files, f)
	}

	return files, manifest, nil
}

func (p *Pipeline) write(ctx context.Context, files []File) error {
	dir := p.desc.OutputDir()
	metrics := telemetry.GetMetrics()

	for _, f := range files {
		full := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := p.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := afero.WriteFile(p.fs, full, f.Contents, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}

		metrics.ArtifactsWrittenTotal.Add(ctx, 1)
		metrics.ArtifactBytesTotal.Add(ctx, int64(len(f.Contents)))
		log.Debug().Str("file", full).Int("bytes", len(f.Contents)).Msg("Built file")
	}

	return nil
}

func recordModules(ctx context.Context, g *graph.Graph) {
	metrics := telemetry.GetMetrics()

	var verbatim, transformed int64
	for _, m := range g.Modules {
		if m.Verbatim {
			verbatim++
		} else {
			transformed++
		}
	}
	metrics.ModulesTransformedTotal.Add(ctx, transformed)
	metrics.ModulesVerbatimTotal.Add(ctx, verbatim)
}

// LoadScripts returns the ordered script paths needed for the given entry,
// relative to the output directory, with its dependencies first.
func (p *Pipeline) LoadScripts(entry string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.manifest == nil {
		return nil, ErrNotBuilt
	}
	return p.manifest.Scripts(entry)
}

// Manifest returns the manifest of the last successful build.
func (p *Pipeline) Manifest() *Manifest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manifest
}
