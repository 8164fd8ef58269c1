package graph

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/resolve"
	"github.com/wolfeidau/pagepack/internal/transform"
)

func newWalker(t *testing.T, files map[string]string, entry map[string]config.Requests) *Walker {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, contents := range files {
		require.NoError(t, afero.WriteFile(fs, "/app/"+name, []byte(contents), 0600))
	}

	d := config.Default("/app")
	d.Entry = entry
	d.Rules[0].Include = nil

	engine, err := transform.NewEngine(d, transform.Options{})
	require.NoError(t, err)

	resolver := resolve.New(fs, d.Context, d.Resolve.Extensions, d.AbsAll(d.Resolve.Roots))
	return NewWalker(fs, d, resolver, engine)
}

func TestWalk_SharedModules(t *testing.T) {
	w := newWalker(t, map[string]string{
		"a.js":     "import c from './c'; export default c + 'a';",
		"b.js":     "import c from './c'; import d from './lib/d'; export default c + d;",
		"c.js":     "import d from './lib/d'; export default 'c' + d;",
		"lib/d.js": "export default 'd';",
	}, map[string]config.Requests{
		"first":  {"a.js"},
		"second": {"./b.js"},
	})

	g, err := w.Walk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.js", "c.js", "lib/d.js", "b.js"}, g.Order())
	require.Len(t, g.Entries, 2)
	assert.Equal(t, Entry{Name: "first", Modules: []string{"a.js"}}, g.Entries[0])
	assert.Equal(t, Entry{Name: "second", Modules: []string{"b.js"}}, g.Entries[1])

	assert.Equal(t, map[string]bool{"first": true, "second": true}, g.Modules["c.js"].Entries)
	assert.Equal(t, map[string]bool{"first": true, "second": true}, g.Modules["lib/d.js"].Entries)
	assert.Equal(t, map[string]bool{"first": true}, g.Modules["a.js"].Entries)

	assert.Equal(t, map[string]string{"./c": "c.js", "./lib/d": "lib/d.js"}, g.Modules["b.js"].Deps)
	assert.Equal(t, []string{"c.js", "lib/d.js", "b.js"}, g.Reachable("second"))

	deps := g.Dependents()
	assert.Equal(t, 2, deps["c.js"])
	assert.Equal(t, 2, deps["lib/d.js"])
	assert.Zero(t, deps["a.js"])
}

func TestWalk_Cycle(t *testing.T) {
	w := newWalker(t, map[string]string{
		"a.js": "const b = require('./b'); module.exports = 'a';",
		"b.js": "const a = require('./a'); module.exports = 'b';",
	}, map[string]config.Requests{"index": {"a.js"}})

	g, err := w.Walk(context.Background())
	require.NoError(t, err)
	assert.Len(t, g.Modules, 2)
	assert.Equal(t, "a.js", g.Modules["b.js"].Deps["./a"])
}

func TestWalk_MissingEntry(t *testing.T) {
	w := newWalker(t, map[string]string{
		"a.js": "export default 1;",
	}, map[string]config.Requests{"index": {"a.js"}, "other": {"missing.js"}})

	_, err := w.Walk(context.Background())
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "missing.js", rerr.Request)
}

func TestWalk_MissingImport(t *testing.T) {
	w := newWalker(t, map[string]string{
		"a.js": "import x from './nowhere'; export default x;",
	}, map[string]config.Requests{"index": {"a.js"}})

	_, err := w.Walk(context.Background())
	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "./nowhere", rerr.Request)
	assert.Equal(t, "a.js", rerr.Importer)
}

func TestWalk_Cancelled(t *testing.T) {
	w := newWalker(t, map[string]string{"a.js": "export default 1;"}, map[string]config.Requests{"index": {"a.js"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Walk(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
