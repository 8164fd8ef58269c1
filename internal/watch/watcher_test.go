package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mkdirs(t *testing.T, base string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(base, d), 0o755))
	}
}

func run(t *testing.T, w *Watcher) (cancel func()) {
	t.Helper()

	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	return func() {
		stop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
}

func TestWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	mkdirs(t, dir, "src/jsx", "node_modules/lib", "static/js", ".git")

	calls := make(chan []string, 4)
	w, err := New(Config{
		BaseDir:  dir,
		Ignore:   []string{"static/js", "static/js/**"},
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			calls <- changed
			return nil
		},
	})
	require.NoError(t, err)

	stop := run(t, w)
	defer stop()

	for _, name := range []string{"src/a.js", "src/jsx/b.jsx", "node_modules/lib/index.js", "static/js/index.js", ".git/HEAD"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case changed := <-calls:
		assert.Equal(t, []string{"src/a.js", "src/jsx/b.jsx"}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	select {
	case changed := <-calls:
		t.Fatalf("unexpected second rebuild: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoredOnly(t *testing.T) {
	dir := t.TempDir()
	mkdirs(t, dir, "node_modules/lib")

	calls := make(chan []string, 1)
	w, err := New(Config{
		BaseDir:  dir,
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			calls <- changed
			return nil
		},
	})
	require.NoError(t, err)

	stop := run(t, w)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules/lib/index.js"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".swp"), []byte("x"), 0o600))

	select {
	case changed := <-calls:
		t.Fatalf("unexpected rebuild: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()

	calls := make(chan []string, 4)
	w, err := New(Config{
		BaseDir:  dir,
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			calls <- changed
			return nil
		},
	})
	require.NoError(t, err)

	stop := run(t, w)
	defer stop()

	mkdirs(t, dir, "pages")

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after mkdir")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "MainPage.jsx"), []byte("x"), 0o600))

	select {
	case changed := <-calls:
		assert.Contains(t, changed, "pages/MainPage.jsx")
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild for file in new directory")
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	w, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Config{BaseDir: t.TempDir(), Ignore: []string{"[unclosed"}})
	require.Error(t, err)
}
