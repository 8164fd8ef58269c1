package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/pagepack/cmd/pagepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build   commands.BuildCmd   `cmd:"" help:"Build bundles from a descriptor"`
		Pages   commands.PagesCmd   `cmd:"" help:"Load the page modules and list them"`
		Inspect commands.InspectCmd `cmd:"" help:"Show the outputs of a previous build"`
		Debug   bool                `help:"Enable debug mode."`
		Tracing bool                `help:"Export build traces and metrics over OTLP." env:"PAGEPACK_TRACING"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("pagepack"),
		kong.Description("Bundle page scripts and stylesheets for the browser."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Tracing: cli.Tracing, Version: version})
	cmd.FatalIfErrorf(err)
}
