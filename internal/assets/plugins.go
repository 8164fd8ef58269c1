package assets

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/graph"
	"github.com/wolfeidau/pagepack/internal/link"
	"github.com/wolfeidau/pagepack/internal/transform"
)

// plan is the build shape assembled from the configured plugins.
type plan struct {
	transform  transform.Options
	link       link.Options
	occurrence *occurrenceOrder
	minify     *minifier
	compress   *compressor
	manifest   *manifestWriter
}

type pluginFactory func(field string, options map[string]any, p *plan) error

var plugins = map[string]pluginFactory{
	"commons":              commonsPlugin,
	"CommonsChunkPlugin":   commonsPlugin,
	"define":               definePlugin,
	"DefinePlugin":         definePlugin,
	"minify":               minifyPlugin,
	"UglifyJsPlugin":       minifyPlugin,
	"compress":             compressPlugin,
	"manifest":             manifestPlugin,
	"occurrence-order":     occurrencePlugin,
	"OccurenceOrderPlugin": occurrencePlugin,
}

// Plugins lists the registered plugin names, aliases included.
func Plugins() []string {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newPlan(desc *config.Descriptor) (*plan, error) {
	p := &plan{
		link: link.Options{Filename: desc.Output.Filename},
	}

	for i, plugin := range desc.Plugins {
		field := fmt.Sprintf("plugins[%d]", i)

		factory, ok := plugins[plugin.Name]
		if !ok {
			return nil, &config.Error{Field: field + ".name", Msg: fmt.Sprintf("unknown plugin %q", plugin.Name)}
		}
		if err := factory(field+".options", plugin.Options, p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

type commonsOptions struct {
	Name      string `yaml:"name"`
	Filename  string `yaml:"filename"`
	MinChunks int    `yaml:"minChunks"`
}

func commonsPlugin(field string, options map[string]any, p *plan) error {
	var opts commonsOptions
	if err := config.DecodeOptions(field, options, &opts); err != nil {
		return err
	}
	if opts.MinChunks < 0 {
		return &config.Error{Field: field + ".minChunks", Msg: "must not be negative"}
	}

	p.link.Commons = &link.Commons{
		Name:      opts.Name,
		Filename:  opts.Filename,
		MinChunks: opts.MinChunks,
	}
	return nil
}

// definePlugin takes identifier to expression pairs. String values are
// inserted as code, other values as their JSON literal.
func definePlugin(field string, options map[string]any, p *plan) error {
	if p.transform.Define == nil {
		p.transform.Define = map[string]string{}
	}

	for key, value := range options {
		switch v := value.(type) {
		case string:
			p.transform.Define[key] = v
		default:
			lit, err := json.Marshal(v)
			if err != nil {
				return &config.Error{Field: field + "." + key, Msg: "value is not a constant", Err: err}
			}
			p.transform.Define[key] = string(lit)
		}
	}
	return nil
}

type occurrenceOptions struct {
	PreferEntry bool `yaml:"preferEntry"`
}

func occurrencePlugin(field string, options map[string]any, p *plan) error {
	var opts occurrenceOptions
	if err := config.DecodeOptions(field, options, &opts); err != nil {
		return err
	}
	p.occurrence = &occurrenceOrder{preferEntry: opts.PreferEntry}
	return nil
}

// occurrenceOrder places the most depended upon modules first.
type occurrenceOrder struct {
	preferEntry bool
}

func (o *occurrenceOrder) order(g *graph.Graph) func([]string) {
	counts := g.Dependents()
	entries := map[string]bool{}
	for _, e := range g.Entries {
		for _, id := range e.Modules {
			entries[id] = true
		}
	}

	return func(ids []string) {
		sort.SliceStable(ids, func(i, j int) bool {
			a, b := ids[i], ids[j]
			if o.preferEntry && entries[a] != entries[b] {
				return entries[a]
			}
			if counts[a] != counts[b] {
				return counts[a] > counts[b]
			}
			return a < b
		})
	}
}
