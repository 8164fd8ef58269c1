// Package transform applies the descriptor's ordered rules to source files.
// The first matching rule wins; files under an excluded directory, or matching
// no rule at all, pass through byte for byte.
package transform

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind describes what a Source currently holds.
type Kind int

const (
	// KindRaw is untouched file content.
	KindRaw Kind = iota
	// KindScript is script source that still needs transpiling.
	KindScript
	// KindStyle is a stylesheet.
	KindStyle
	// KindModule is a CommonJS module body ready for linking.
	KindModule
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStyle:
		return "style"
	case KindModule:
		return "module"
	default:
		return "raw"
	}
}

// Source is a file moving through a rule's stages.
type Source struct {
	// Path is the absolute file path.
	Path string
	// ID is the path relative to the descriptor context, slash separated.
	ID       string
	Contents []byte
	Kind     Kind
	// Imports lists the module requests found in the file, sorted.
	Imports []string
	// Exports maps local class names to their scoped names for stylesheets.
	Exports map[string]string
	// Verbatim is set when the file was not transformed.
	Verbatim bool
}

// Clone returns a shallow copy with its own import and export collections.
func (s *Source) Clone() *Source {
	c := *s
	c.Imports = append([]string(nil), s.Imports...)
	if s.Exports != nil {
		c.Exports = make(map[string]string, len(s.Exports))
		for k, v := range s.Exports {
			c.Exports[k] = v
		}
	}
	return &c
}

type Transformer interface {
	Name() string
	Transform(ctx context.Context, src *Source) (*Source, error)
}

var scriptExts = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
}

var styleExts = map[string]bool{
	".css": true,
}

// KindOf guesses the kind of a file from its extension.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case scriptExts[ext]:
		return KindScript
	case styleExts[ext]:
		return KindStyle
	default:
		return KindRaw
	}
}
