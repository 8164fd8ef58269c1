// Package link assigns graph modules to output artifacts and emits them.
package link

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/graph"
	"github.com/wolfeidau/pagepack/internal/transform"
)

const DefaultMinChunks = 2

// Commons extracts modules reached by at least MinChunks entries into one
// shared artifact.
type Commons struct {
	Name      string
	Filename  string
	MinChunks int
}

type Options struct {
	// Filename is the output template, e.g. "[name].js".
	Filename string
	Commons  *Commons
	// Order sorts the module IDs placed in one artifact. Nil sorts by ID.
	Order func(ids []string)
}

type Artifact struct {
	Name     string
	Filename string
	Entry    bool
	Common   bool
	// Modules lists the IDs defined in this artifact, in emission order.
	Modules []string
	// Imports lists artifact filenames that must load before this one.
	Imports  []string
	Contents []byte
}

// Link emits one artifact per entry and, with Commons set, a shared artifact
// listed first. Every module is defined in exactly one artifact.
func Link(g *graph.Graph, opts Options) ([]Artifact, error) {
	if opts.Filename == "" {
		opts.Filename = config.DefaultFilename
	}
	order := opts.Order
	if order == nil {
		order = sort.Strings
	}

	shared := map[string]bool{}
	var artifacts []Artifact

	if opts.Commons != nil {
		minChunks := opts.Commons.MinChunks
		if minChunks <= 0 {
			minChunks = DefaultMinChunks
		}

		var ids []string
		for _, id := range g.Order() {
			if len(g.Modules[id].Entries) >= minChunks {
				shared[id] = true
				ids = append(ids, id)
			}
		}
		order(ids)

		var buf bytes.Buffer
		buf.WriteString(runtime)
		if err := writeModules(&buf, g, ids); err != nil {
			return nil, err
		}

		name := opts.Commons.Name
		if name == "" {
			name = "common"
		}
		filename := opts.Commons.Filename
		if filename == "" {
			filename = expand(opts.Filename, name, 0, buf.Bytes())
		}

		artifacts = append(artifacts, Artifact{
			Name:     name,
			Filename: filename,
			Common:   true,
			Modules:  ids,
			Contents: buf.Bytes(),
		})
	}

	for _, entry := range g.Entries {
		var ids []string
		for _, id := range g.Reachable(entry.Name) {
			if !shared[id] {
				ids = append(ids, id)
			}
		}
		order(ids)

		var buf bytes.Buffer
		if opts.Commons == nil {
			buf.WriteString(runtime)
		}
		if err := writeModules(&buf, g, ids); err != nil {
			return nil, err
		}
		for _, id := range entry.Modules {
			quoted, err := json.Marshal(id)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&buf, "__pagepack.load(%s);\n", quoted)
		}

		a := Artifact{
			Name:     entry.Name,
			Filename: expand(opts.Filename, entry.Name, len(artifacts), buf.Bytes()),
			Entry:    true,
			Modules:  ids,
			Contents: buf.Bytes(),
		}
		if opts.Commons != nil {
			a.Imports = []string{artifacts[0].Filename}
		}
		artifacts = append(artifacts, a)
	}

	if err := checkFilenames(artifacts); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// writeModules appends one define call per module. Module code is copied
// byte for byte; requests are mapped through the per-module dependency table.
func writeModules(buf *bytes.Buffer, g *graph.Graph, ids []string) error {
	for _, id := range ids {
		m := g.Modules[id]

		quoted, err := json.Marshal(id)
		if err != nil {
			return err
		}
		table := m.Deps
		if table == nil {
			table = map[string]string{}
		}
		deps, err := json.Marshal(table)
		if err != nil {
			return err
		}

		fmt.Fprintf(buf, "__pagepack.define(%s, %s, function (module, exports, require) {\n", quoted, deps)
		if err := writeBody(buf, m); err != nil {
			return err
		}
		buf.WriteString("});\n")
	}
	return nil
}

// writeBody copies script code as is. Untransformed non-script files export
// their text.
func writeBody(buf *bytes.Buffer, m *graph.Module) error {
	if m.Verbatim && transform.KindOf(m.Path) != transform.KindScript {
		text, err := json.Marshal(string(m.Code))
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "module.exports = %s;\n", text)
		return nil
	}

	buf.Write(m.Code)
	if len(m.Code) > 0 && m.Code[len(m.Code)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return nil
}

func expand(template, name string, index int, contents []byte) string {
	h := contentHash(contents)
	return strings.NewReplacer(
		"[name]", name,
		"[id]", strconv.Itoa(index),
		"[chunkhash]", h,
		"[hash]", h,
	).Replace(template)
}

// contentHash is the base58 form of the CRC64-NVME checksum of contents.
func contentHash(contents []byte) string {
	h := crc64nvme.New()
	h.Write(contents)

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return base58.Encode(sum[:])
}

func checkFilenames(artifacts []Artifact) error {
	seen := map[string]string{}
	for _, a := range artifacts {
		clean := path.Clean(a.Filename)
		if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return &config.Error{Field: "output.filename", Msg: fmt.Sprintf("artifact %q has filename %q outside the output directory", a.Name, a.Filename)}
		}
		if other, ok := seen[clean]; ok {
			return &config.Error{Field: "output.filename", Msg: fmt.Sprintf("artifacts %q and %q both write %s", other, a.Name, clean)}
		}
		seen[clean] = a.Name
	}
	return nil
}
