// Package resolve locates the file a module request refers to.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("module not found")

// Error reports a request that could not be located.
type Error struct {
	Request  string
	Importer string
	Err      error
}

func (e *Error) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("cannot resolve entry %q: %v", e.Request, e.Err)
	}
	return fmt.Sprintf("cannot resolve %q from %s: %v", e.Request, e.Importer, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Resolver struct {
	fs         afero.Fs
	context    string
	extensions []string
	roots      []string
}

// New creates a resolver rooted at context. Roots are searched for bare
// requests before any node_modules directory.
func New(fs afero.Fs, context string, extensions, roots []string) *Resolver {
	if len(extensions) == 0 {
		extensions = []string{""}
	}
	return &Resolver{
		fs:         fs,
		context:    filepath.Clean(context),
		extensions: extensions,
		roots:      roots,
	}
}

// ResolveEntry resolves an entry request: first as a path relative to the
// context, then as a module request.
func (r *Resolver) ResolveEntry(request string) (string, error) {
	if p, ok := r.tryPath(r.anchor(request, r.context)); ok {
		return p, nil
	}

	p, err := r.Resolve(request, r.context)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			rerr.Importer = ""
		}
		return "", err
	}
	return p, nil
}

// Resolve locates request as imported from a file in fromDir.
func (r *Resolver) Resolve(request, fromDir string) (string, error) {
	if request == "" {
		return "", &Error{Request: request, Importer: fromDir, Err: ErrNotFound}
	}

	if isPathRequest(request) {
		if p, ok := r.tryPath(r.anchor(request, fromDir)); ok {
			return p, nil
		}
		return "", &Error{Request: request, Importer: fromDir, Err: ErrNotFound}
	}

	for _, root := range r.roots {
		if p, ok := r.tryPath(filepath.Join(root, filepath.FromSlash(request))); ok {
			return p, nil
		}
	}

	for _, dir := range r.moduleDirs(fromDir) {
		if p, ok := r.tryPath(filepath.Join(dir, filepath.FromSlash(request))); ok {
			return p, nil
		}
	}

	return "", &Error{Request: request, Importer: fromDir, Err: ErrNotFound}
}

func isPathRequest(request string) bool {
	return strings.HasPrefix(request, "./") ||
		strings.HasPrefix(request, "../") ||
		request == "." || request == ".." ||
		path.IsAbs(request) || filepath.IsAbs(request)
}

func (r *Resolver) anchor(request, dir string) string {
	p := filepath.FromSlash(request)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// moduleDirs lists node_modules directories from dir up to the context.
func (r *Resolver) moduleDirs(dir string) []string {
	var dirs []string
	dir = filepath.Clean(dir)
	for {
		if filepath.Base(dir) != "node_modules" {
			dirs = append(dirs, filepath.Join(dir, "node_modules"))
		}
		if dir == r.context {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir || !strings.HasPrefix(dir, r.context) {
			break
		}
		dir = parent
	}
	return dirs
}

// tryPath tries p with every extension, then as a directory.
func (r *Resolver) tryPath(p string) (string, bool) {
	for _, ext := range r.extensions {
		if r.isFile(p + ext) {
			return p + ext, true
		}
	}

	if !r.isDir(p) {
		return "", false
	}

	if main := r.packageMain(p); main != "" {
		target := filepath.Join(p, filepath.FromSlash(main))
		for _, ext := range r.extensions {
			if r.isFile(target + ext) {
				return target + ext, true
			}
		}
		if r.isDir(target) {
			if idx, ok := r.tryIndex(target); ok {
				return idx, true
			}
		}
	}

	return r.tryIndex(p)
}

func (r *Resolver) tryIndex(dir string) (string, bool) {
	index := filepath.Join(dir, "index")
	for _, ext := range r.extensions {
		if ext == "" {
			continue
		}
		if r.isFile(index + ext) {
			return index + ext, true
		}
	}
	return "", false
}

func (r *Resolver) packageMain(dir string) string {
	data, err := afero.ReadFile(r.fs, filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}

	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Main
}

func (r *Resolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (r *Resolver) isDir(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && info.IsDir()
}
