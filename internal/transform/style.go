package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfeidau/pagepack/internal/config"
)

type StyleOptions struct {
	// InsertAt is "bottom" (default) or "top" of the document head.
	InsertAt string `yaml:"insertAt"`
}

type styleInjector struct {
	top bool
}

func newStyle(env Env, options map[string]any) (Transformer, error) {
	var opts StyleOptions
	if err := config.DecodeOptions(env.Field+".options", options, &opts); err != nil {
		return nil, err
	}

	switch opts.InsertAt {
	case "", "bottom", "top":
	default:
		return nil, &config.Error{Field: env.Field + ".options.insertAt", Msg: fmt.Sprintf("unsupported value %q", opts.InsertAt)}
	}

	return &styleInjector{top: opts.InsertAt == "top"}, nil
}

func (s *styleInjector) Name() string { return "style" }

// Transform wraps a stylesheet in a module that appends it to the document
// head when one exists and exports the class map.
func (s *styleInjector) Transform(_ context.Context, src *Source) (*Source, error) {
	if src.Kind != KindStyle {
		return nil, &Error{Path: src.ID, Loader: s.Name(), Err: fmt.Errorf("%w: %s, expected style", ErrUnexpectedKind, src.Kind)}
	}

	css, err := json.Marshal(string(src.Contents))
	if err != nil {
		return nil, &Error{Path: src.ID, Loader: s.Name(), Err: err}
	}
	locals, err := json.Marshal(exportsOrEmpty(src.Exports))
	if err != nil {
		return nil, &Error{Path: src.ID, Loader: s.Name(), Err: err}
	}
	id, _ := json.Marshal(src.ID)

	insert := "head.appendChild(style);"
	if s.top {
		insert = "head.insertBefore(style, head.firstChild);"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "var css = %s;\n", css)
	b.WriteString("if (typeof document !== \"undefined\") {\n")
	b.WriteString("  var head = document.head || document.getElementsByTagName(\"head\")[0];\n")
	b.WriteString("  var style = document.createElement(\"style\");\n")
	fmt.Fprintf(&b, "  style.setAttribute(\"data-pagepack\", %s);\n", id)
	b.WriteString("  style.appendChild(document.createTextNode(css));\n")
	fmt.Fprintf(&b, "  %s\n", insert)
	b.WriteString("}\n")
	fmt.Fprintf(&b, "module.exports = %s;\n", locals)

	out := src.Clone()
	out.Contents = []byte(b.String())
	out.Kind = KindModule
	out.Imports = nil
	return out, nil
}
