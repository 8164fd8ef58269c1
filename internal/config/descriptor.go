// Package config loads and validates the build descriptor: entry points, output
// target, module resolution settings, ordered transform rules and plugins.
package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the output filename template used when none is configured.
const DefaultFilename = "[name].js"

// DefaultExtensions lists the extensions tried, in order, when resolving a request.
var DefaultExtensions = []string{"", ".js", ".jsx"}

type Descriptor struct {
	// Context is the root source directory; relative paths resolve against it.
	Context string `yaml:"context"`
	// Entry maps an output name to the requests bundled into it.
	Entry   map[string]Requests `yaml:"entry"`
	Output  Output              `yaml:"output"`
	Resolve Resolve             `yaml:"resolve"`
	// Exclude lists directories whose files are never transformed.
	Exclude []string `yaml:"exclude"`
	Rules   []Rule   `yaml:"rules"`
	Plugins []Plugin `yaml:"plugins"`
	Pages   *Pages   `yaml:"pages"`
}

type Output struct {
	Path     string `yaml:"path"`
	Filename string `yaml:"filename"`
}

type Resolve struct {
	Extensions []string `yaml:"extensions"`
	Roots      []string `yaml:"roots"`
}

// Rule applies its stages to every file matching Test that lies under one of
// Include (when set) and under none of Exclude.
type Rule struct {
	Test    string   `yaml:"test"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Use     []Stage  `yaml:"use"`
}

// Stage names a loader and its options.
type Stage struct {
	Loader  string         `yaml:"loader"`
	Options map[string]any `yaml:"options"`
}

type Plugin struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
}

// Pages points at the directory holding the page modules verified before each build.
type Pages struct {
	Dir string `yaml:"dir"`
}

// Requests accepts either a single request or a list of them.
type Requests []string

func (r *Requests) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*r = Requests{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*r = list
	return nil
}

func (s *Stage) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = Stage{Loader: node.Value}
		return nil
	}
	type plain Stage
	return node.Decode((*plain)(s))
}

func (p *Plugin) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = Plugin{Name: node.Value}
		return nil
	}
	type plain Plugin
	return node.Decode((*plain)(p))
}

// Load reads the descriptor at path, applies defaults and validates it. A
// relative or empty context is taken relative to the descriptor's directory.
func Load(fs afero.Fs, path string) (*Descriptor, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &Error{Field: "descriptor", Msg: "failed to read " + path, Err: err}
	}

	d, err := Parse(data)
	if err != nil {
		return nil, err
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve descriptor directory: %w", err)
	}
	if d.Context == "" {
		d.Context = base
	} else if !filepath.IsAbs(d.Context) {
		d.Context = filepath.Join(base, d.Context)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// Parse decodes a descriptor and applies defaults without validating it.
func Parse(data []byte) (*Descriptor, error) {
	d := &Descriptor{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil {
		return nil, &Error{Field: "descriptor", Msg: "malformed YAML", Err: err}
	}

	d.ApplyDefaults()
	return d, nil
}

// ApplyDefaults fills in the output filename and resolvable extensions.
func (d *Descriptor) ApplyDefaults() {
	if d.Output.Filename == "" {
		d.Output.Filename = DefaultFilename
	}
	if d.Resolve.Extensions == nil {
		d.Resolve.Extensions = append([]string(nil), DefaultExtensions...)
	}
}

// Abs returns p anchored at the descriptor context.
func (d *Descriptor) Abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(d.Context, p)
}

// AbsAll anchors every path in ps at the descriptor context.
func (d *Descriptor) AbsAll(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, d.Abs(p))
	}
	return out
}

// OutputDir is the absolute output directory.
func (d *Descriptor) OutputDir() string {
	return d.Abs(d.Output.Path)
}

// Rel returns p relative to the context using forward slashes. Paths outside
// the context are returned cleaned and slash separated.
func (d *Descriptor) Rel(p string) string {
	rel, err := filepath.Rel(d.Context, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(p))
	}
	return filepath.ToSlash(rel)
}

// Matcher compiles the rule's test pattern.
func (r Rule) Matcher() (*regexp.Regexp, error) {
	return regexp.Compile(r.Test)
}

// Plugin returns the first plugin configured under any of names.
func (d *Descriptor) Plugin(names ...string) (Plugin, bool) {
	for _, p := range d.Plugins {
		for _, name := range names {
			if p.Name == name {
				return p, true
			}
		}
	}
	return Plugin{}, false
}

// DecodeOptions strictly decodes loader or plugin options into out. Unknown
// keys are reported as a configuration error against field.
func DecodeOptions(field string, in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}

	raw, err := yaml.Marshal(in)
	if err != nil {
		return &Error{Field: field, Msg: "invalid options", Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return &Error{Field: field, Msg: "invalid options", Err: err}
	}

	return nil
}
