package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/assets"
	"github.com/wolfeidau/pagepack/internal/logger"
)

// InspectCmd prints a manifest and the order scripts must load in.
type InspectCmd struct {
	Manifest string `help:"path to the manifest written by the manifest plugin" default:"static/js/manifest.json" type:"path"`
	Entry    string `help:"only print the load order for this entry"`

	Out io.Writer `kong:"-"`
}

func (c *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	m, err := assets.LoadManifest(afero.NewOsFs(), c.Manifest)
	if err != nil {
		return err
	}

	w := output(c.Out)

	if c.Entry != "" {
		scripts, err := m.Scripts(c.Entry)
		if err != nil {
			return err
		}
		for _, s := range scripts {
			fmt.Fprintln(w, s)
		}
		return nil
	}

	fmt.Fprintf(w, "Build: %s\n\n", m.BuildID)

	paths := make([]string, 0, len(m.Outputs))
	for p := range m.Outputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		info := m.Outputs[p]
		kind := "common"
		if info.Entry != "" {
			kind = "entry " + info.Entry
		}
		fmt.Fprintf(w, "%s (%s, %d bytes, %d modules)\n", p, kind, info.Bytes, len(info.Inputs))
		for _, imp := range info.Imports {
			fmt.Fprintf(w, "  imports %s\n", imp.Path)
		}
	}

	fmt.Fprintln(w)
	for _, entry := range m.Entries() {
		scripts, err := m.Scripts(entry)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", entry, strings.Join(scripts, " -> "))
	}

	return nil
}
