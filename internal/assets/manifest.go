package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/graph"
	"github.com/wolfeidau/pagepack/internal/link"
)

var (
	ErrNotBuilt     = errors.New("assets not built yet, call Build() first")
	ErrUnknownEntry = errors.New("entry not found in manifest")
)

func newManifest(g *graph.Graph, artifacts []link.Artifact) *Manifest {
	m := &Manifest{
		BuildID: uuid.NewString(),
		Outputs: make(map[string]OutputInfo, len(artifacts)),
	}

	lastModule := map[string]string{}
	for _, e := range g.Entries {
		if len(e.Modules) > 0 {
			lastModule[e.Name] = e.Modules[len(e.Modules)-1]
		}
	}

	for _, a := range artifacts {
		info := OutputInfo{
			Imports: make([]ImportInfo, 0, len(a.Imports)),
			Inputs:  make(map[string]InputInfo, len(a.Modules)),
			Bytes:   len(a.Contents),
		}
		if a.Entry {
			info.Entry = a.Name
			info.EntryPoint = lastModule[a.Name]
		}
		for _, imp := range a.Imports {
			info.Imports = append(info.Imports, ImportInfo{Path: path.Clean(imp)})
		}
		for _, id := range a.Modules {
			info.Inputs[id] = InputInfo{BytesInOutput: len(g.Modules[id].Code)}
		}
		m.Outputs[path.Clean(a.Filename)] = info
	}

	return m
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Entries lists the entry names in the manifest.
func (m *Manifest) Entries() []string {
	var names []string
	for _, info := range m.Outputs {
		if info.Entry != "" {
			names = append(names, info.Entry)
		}
	}
	sort.Strings(names)
	return names
}

// Scripts returns the output paths to load for entry, dependencies first and
// the entry bundle last.
func (m *Manifest) Scripts(entry string) ([]string, error) {
	for outputPath, info := range m.Outputs {
		if info.Entry != entry {
			continue
		}

		scripts := []string{}
		visited := map[string]bool{}
		m.addDependencies(outputPath, &scripts, visited)
		return scripts, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, entry)
}

func (m *Manifest) addDependencies(outputPath string, scripts *[]string, visited map[string]bool) {
	if visited[outputPath] {
		return
	}
	visited[outputPath] = true

	for _, imp := range m.Outputs[outputPath].Imports {
		m.addDependencies(imp.Path, scripts, visited)
	}
	*scripts = append(*scripts, outputPath)
}

// LoadManifest reads a manifest written by the manifest plugin.
func LoadManifest(fs afero.Fs, name string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", name, err)
	}
	if m.Outputs == nil {
		m.Outputs = map[string]OutputInfo{}
	}
	return &m, nil
}
