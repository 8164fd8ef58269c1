package link

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/graph"
)

func module(id, code string, deps map[string]string, entries ...string) *graph.Module {
	m := &graph.Module{ID: id, Code: []byte(code), Deps: deps, Entries: map[string]bool{}}
	for _, e := range entries {
		m.Entries[e] = true
	}
	return m
}

func sharedGraph() *graph.Graph {
	g := graph.New()
	g.Add(module("a.js", "module.exports = require('./c') + 'A_MARKER';", map[string]string{"./c": "c.js"}, "a"))
	g.Add(module("c.js", "module.exports = 'C_MARKER';", nil, "a", "b"))
	g.Add(module("b.js", "module.exports = require('./c') + 'B_MARKER';", map[string]string{"./c": "c.js"}, "b"))
	g.Entries = []graph.Entry{
		{Name: "a", Modules: []string{"a.js"}},
		{Name: "b", Modules: []string{"b.js"}},
	}
	return g
}

func count(artifacts []Artifact, needle string) int {
	n := 0
	for _, a := range artifacts {
		n += strings.Count(string(a.Contents), needle)
	}
	return n
}

func TestLink_WithoutCommons(t *testing.T) {
	artifacts, err := Link(sharedGraph(), Options{Filename: "[name].js"})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, "a.js", artifacts[0].Filename)
	assert.Equal(t, "b.js", artifacts[1].Filename)
	assert.Equal(t, []string{"a.js", "c.js"}, artifacts[0].Modules)
	assert.Empty(t, artifacts[0].Imports)

	// each bundle carries its own copy of the shared module and the runtime
	assert.Equal(t, 2, count(artifacts, "C_MARKER"))
	assert.Equal(t, 2, count(artifacts, "var __pagepack = "))
	assert.Contains(t, string(artifacts[0].Contents), `__pagepack.load("a.js");`)
}

func TestLink_Commons(t *testing.T) {
	artifacts, err := Link(sharedGraph(), Options{
		Filename: "[name].js",
		Commons:  &Commons{Name: "common", Filename: "common.js"},
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	common := artifacts[0]
	assert.True(t, common.Common)
	assert.Equal(t, "common.js", common.Filename)
	assert.Equal(t, []string{"c.js"}, common.Modules)

	assert.Equal(t, []string{"a.js"}, artifacts[1].Modules)
	assert.Equal(t, []string{"common.js"}, artifacts[1].Imports)
	assert.Equal(t, []string{"b.js"}, artifacts[2].Modules)

	assert.Equal(t, 1, count(artifacts, "C_MARKER"))
	assert.Equal(t, 1, count(artifacts, "var __pagepack = "))
	assert.Equal(t, 1, count(artifacts, "A_MARKER"))
	assert.Contains(t, string(artifacts[1].Contents), `__pagepack.define("a.js", {"./c":"c.js"}, function (module, exports, require) {`)
}

func TestLink_CommonsMinChunks(t *testing.T) {
	artifacts, err := Link(sharedGraph(), Options{
		Filename: "[name].js",
		Commons:  &Commons{Filename: "common.js", MinChunks: 3},
	})
	require.NoError(t, err)

	assert.Empty(t, artifacts[0].Modules)
	assert.Equal(t, 2, count(artifacts, "C_MARKER"))
}

func TestLink_VerbatimCode(t *testing.T) {
	code := "// trailing comment without newline"
	g := graph.New()
	g.Add(module("vendor/x.js", code, nil, "index"))
	g.Entries = []graph.Entry{{Name: "index", Modules: []string{"vendor/x.js"}}}

	artifacts, err := Link(g, Options{})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	assert.Equal(t, "index.js", artifacts[0].Filename)
	assert.True(t, bytes.Contains(artifacts[0].Contents, []byte(code+"\n});\n")))
	assert.Contains(t, string(artifacts[0].Contents), `__pagepack.define("vendor/x.js", {}, function`)
}

func TestLink_VerbatimText(t *testing.T) {
	g := graph.New()
	m := module("vendor/reset.css", "html { margin: 0 }\n", nil, "index")
	m.Path = "/app/vendor/reset.css"
	m.Verbatim = true
	g.Add(m)
	g.Entries = []graph.Entry{{Name: "index", Modules: []string{"vendor/reset.css"}}}

	artifacts, err := Link(g, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(artifacts[0].Contents), `module.exports = "html { margin: 0 }\n";`)
}

func TestLink_Order(t *testing.T) {
	g := graph.New()
	g.Add(module("z.js", "", nil, "index"))
	g.Add(module("a.js", "", nil, "index"))
	g.Entries = []graph.Entry{{Name: "index", Modules: []string{"z.js"}}}

	artifacts, err := Link(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "z.js"}, artifacts[0].Modules)

	artifacts, err = Link(g, Options{Order: func(ids []string) {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"z.js", "a.js"}, artifacts[0].Modules)
}

func TestLink_Filenames(t *testing.T) {
	g := sharedGraph()

	artifacts, err := Link(g, Options{Filename: "js/[name].[hash].js"})
	require.NoError(t, err)
	assert.Regexp(t, `^js/a\.[1-9A-HJ-NP-Za-km-z]+\.js$`, artifacts[0].Filename)
	assert.NotEqual(t, artifacts[0].Filename, artifacts[1].Filename)

	_, err = Link(g, Options{Filename: "bundle.js"})
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "output.filename", cfgErr.Field)

	_, err = Link(g, Options{Filename: "../[name].js"})
	require.ErrorAs(t, err, &cfgErr)

	_, err = Link(g, Options{Filename: "[name].js", Commons: &Commons{Filename: "a.js"}})
	require.ErrorAs(t, err, &cfgErr)
}

func TestLink_IDTemplate(t *testing.T) {
	artifacts, err := Link(sharedGraph(), Options{Filename: "[id].js"})
	require.NoError(t, err)
	assert.Equal(t, "0.js", artifacts[0].Filename)
	assert.Equal(t, "1.js", artifacts[1].Filename)

	// the common artifact takes id 0 and entries follow it
	artifacts, err = Link(sharedGraph(), Options{
		Filename: "[id].js",
		Commons:  &Commons{Name: "common"},
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, "0.js", artifacts[0].Filename)
	assert.Equal(t, "1.js", artifacts[1].Filename)
	assert.Equal(t, "2.js", artifacts[2].Filename)
}
