package config

import (
	"fmt"
	"strings"
)

// Validate checks required fields and rule shapes.
func (d *Descriptor) Validate() error {
	if d.Context == "" {
		return &Error{Field: "context", Msg: "context directory is required"}
	}

	if len(d.Entry) == 0 {
		return &Error{Field: "entry", Err: ErrNoEntries}
	}
	for name, reqs := range d.Entry {
		if strings.TrimSpace(name) == "" {
			return &Error{Field: "entry", Msg: "entry name must not be empty"}
		}
		if len(reqs) == 0 {
			return &Error{Field: "entry." + name, Err: ErrEmptyEntry}
		}
		for _, req := range reqs {
			if strings.TrimSpace(req) == "" {
				return &Error{Field: "entry." + name, Msg: "empty request"}
			}
		}
	}

	if d.Output.Path == "" {
		return &Error{Field: "output.path", Err: ErrNoOutput}
	}
	if len(d.Entry) > 1 && !strings.Contains(d.Output.Filename, "[name]") {
		return &Error{Field: "output.filename", Err: ErrNameMissing}
	}

	for i, rule := range d.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if rule.Test == "" {
			return &Error{Field: field + ".test", Msg: "test pattern is required"}
		}
		if _, err := rule.Matcher(); err != nil {
			return &Error{Field: field + ".test", Msg: "invalid pattern", Err: err}
		}
		if len(rule.Use) == 0 {
			return &Error{Field: field + ".use", Err: ErrNoLoaders}
		}
		for j, stage := range rule.Use {
			if stage.Loader == "" {
				return &Error{Field: fmt.Sprintf("%s.use[%d].loader", field, j), Msg: "loader name is required"}
			}
		}
	}

	for i, p := range d.Plugins {
		if p.Name == "" {
			return &Error{Field: fmt.Sprintf("plugins[%d].name", i), Msg: "plugin name is required"}
		}
	}

	if d.Pages != nil && d.Pages.Dir == "" {
		return &Error{Field: "pages.dir", Msg: "pages directory is required"}
	}

	return nil
}
