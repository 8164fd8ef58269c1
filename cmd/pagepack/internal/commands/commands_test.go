package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/pagepack/internal/pages"
	"github.com/wolfeidau/pagepack/internal/resolve"
)

const descriptorYAML = `
entry:
  first: ./src/first.js
  second: ./src/second.js
output:
  path: static/js
exclude: [node_modules]
rules:
  - test: '\.jsx?$'
    include: [src]
    use:
      - loader: babel
        options:
          presets: [es2015, react]
plugins:
  - name: CommonsChunkPlugin
    options:
      filename: common.js
  - manifest
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, contents := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	}
	return dir
}

func project(t *testing.T) string {
	return writeProject(t, map[string]string{
		"pagepack.yaml": descriptorYAML,
		"src/first.js":  "import c from './c';\nexport default 'FIRST:' + c;\n",
		"src/second.js": "import c from './c';\nexport default 'SECOND:' + c;\n",
		"src/c.js":      "export default 'C_SHARED';\n",
	})
}

func TestBuildCmd_Run(t *testing.T) {
	dir := project(t)

	var out bytes.Buffer
	cmd := &BuildCmd{Config: filepath.Join(dir, "pagepack.yaml"), Out: &out}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	for _, name := range []string{"common.js", "first.js", "second.js", "manifest.json"} {
		_, err := os.Stat(filepath.Join(dir, "static", "js", name))
		require.NoError(t, err, name)
		assert.Contains(t, out.String(), name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "static", "js", "common.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "C_SHARED")
}

func TestBuildCmd_MissingEntry(t *testing.T) {
	dir := project(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "second.js")))

	cmd := &BuildCmd{Config: filepath.Join(dir, "pagepack.yaml"), Out: &bytes.Buffer{}}
	err := cmd.Run(context.Background(), &Globals{})

	var rerr *resolve.Error
	require.ErrorAs(t, err, &rerr)

	_, err = os.Stat(filepath.Join(dir, "static"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildCmd_MissingConfig(t *testing.T) {
	cmd := &BuildCmd{Config: filepath.Join(t.TempDir(), "pagepack.yaml")}
	require.Error(t, cmd.Run(context.Background(), &Globals{}))
}

func TestBuildCmd_Watch(t *testing.T) {
	dir := project(t)

	var out bytes.Buffer
	cmd := &BuildCmd{
		Config:   filepath.Join(dir, "pagepack.yaml"),
		Watch:    true,
		Debounce: 20 * time.Millisecond,
		Out:      &out,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, cmd.Run(ctx, &Globals{}))
	assert.Contains(t, out.String(), "first.js")
}

func TestPagesCmd_Run(t *testing.T) {
	files := map[string]string{}
	for _, name := range pages.Names {
		files["pages/"+name+".jsx"] = "export default function " + name + "() { return null; }\n"
	}
	dir := writeProject(t, files)

	var out bytes.Buffer
	barrel := filepath.Join(dir, "pages", "index.js")
	cmd := &PagesCmd{Dir: filepath.Join(dir, "pages"), Barrel: barrel, Out: &out}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	for _, name := range pages.Names {
		assert.Contains(t, out.String(), name)
	}

	data, err := os.ReadFile(barrel)
	require.NoError(t, err)
	assert.Contains(t, string(data), "import MainPage from './MainPage';")
	assert.Contains(t, string(data), "exports.ViewPage = ViewPage;")
}

func TestPagesCmd_Missing(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"pages/MainPage.jsx": "export default 1;\n",
	})

	cmd := &PagesCmd{Dir: filepath.Join(dir, "pages"), Out: &bytes.Buffer{}}
	err := cmd.Run(context.Background(), &Globals{})

	var lerr *pages.LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "LoginPage", lerr.Name)
}

func TestPagesCmd_SyntaxError(t *testing.T) {
	files := map[string]string{}
	for _, name := range pages.Names {
		files["pages/"+name+".jsx"] = "export default function " + name + "() { return <div />; }\n"
	}
	files["pages/ViewPage.jsx"] = "export default function ViewPage( { return <div;\n"
	dir := writeProject(t, files)

	cmd := &PagesCmd{Dir: filepath.Join(dir, "pages"), Out: &bytes.Buffer{}}
	err := cmd.Run(context.Background(), &Globals{})

	var lerr *pages.LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "ViewPage", lerr.Name)
	assert.Contains(t, err.Error(), "ViewPage.jsx:1:")
}

func TestInspectCmd_Run(t *testing.T) {
	dir := project(t)
	build := &BuildCmd{Config: filepath.Join(dir, "pagepack.yaml"), Out: &bytes.Buffer{}}
	require.NoError(t, build.Run(context.Background(), &Globals{}))

	manifest := filepath.Join(dir, "static", "js", "manifest.json")

	var out bytes.Buffer
	cmd := &InspectCmd{Manifest: manifest, Out: &out}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
	assert.Contains(t, out.String(), "first.js (entry first")
	assert.Contains(t, out.String(), "imports common.js")
	assert.Contains(t, out.String(), "second: common.js -> second.js")

	out.Reset()
	cmd = &InspectCmd{Manifest: manifest, Entry: "first", Out: &out}
	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
	assert.Equal(t, "common.js\nfirst.js\n", out.String())

	cmd = &InspectCmd{Manifest: manifest, Entry: "third", Out: &bytes.Buffer{}}
	require.Error(t, cmd.Run(context.Background(), &Globals{}))
}
