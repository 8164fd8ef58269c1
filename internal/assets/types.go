package assets

import (
	"sync"

	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/graph"
	"github.com/wolfeidau/pagepack/internal/resolve"
	"github.com/wolfeidau/pagepack/internal/transform"
)

// Manifest describes one build's outputs, keyed by path relative to the
// output directory.
type Manifest struct {
	BuildID string                `json:"buildId"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	// Entry is the entry name for entry bundles, empty for the common chunk.
	Entry string `json:"entry,omitempty"`
	// EntryPoint is the module the entry bundle starts last.
	EntryPoint string               `json:"entryPoint,omitempty"`
	Imports    []ImportInfo         `json:"imports"`
	Inputs     map[string]InputInfo `json:"inputs"`
	Bytes      int                  `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

type InputInfo struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// File is one file destined for the output directory.
type File struct {
	// Path is relative to the output directory, slash separated.
	Path     string
	Contents []byte
}

// Result is what a successful build produced.
type Result struct {
	Manifest *Manifest
	Files    []File
	Graph    *graph.Graph
}

// Pipeline manages the build process and script loading
type Pipeline struct {
	desc     *config.Descriptor
	fs       afero.Fs
	minify   bool
	plan     *plan
	resolver *resolve.Resolver
	engine   *transform.Engine
	manifest *Manifest
	mu       sync.RWMutex
}
