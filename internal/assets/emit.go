package assets

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/transform"
)

type minifyOptions struct {
	Mangle *bool `yaml:"mangle"`
	// Compress is false to skip syntax rewriting. Any other value, including
	// an options map, leaves it on.
	Compress any `yaml:"compress"`
}

func minifyPlugin(field string, options map[string]any, p *plan) error {
	var opts minifyOptions
	if err := config.DecodeOptions(field, options, &opts); err != nil {
		return err
	}

	m := &minifier{mangle: true, syntax: true}
	if opts.Mangle != nil {
		m.mangle = *opts.Mangle
	}
	if b, ok := opts.Compress.(bool); ok {
		m.syntax = b
	}
	p.minify = m
	return nil
}

type minifier struct {
	mangle bool
	syntax bool
}

// Minify rewrites one emitted script. Top level names are left alone so the
// runtime global survives across bundles.
func (m *minifier) Minify(filename string, contents []byte) ([]byte, error) {
	result := api.Transform(string(contents), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        filename,
		MinifyWhitespace:  true,
		MinifyIdentifiers: m.mangle,
		MinifySyntax:      m.syntax,
		LegalComments:     api.LegalCommentsEndOfFile,
		LogLevel:          api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		err := &transform.Error{Path: filename, Loader: "minify", Msg: msg.Text}
		if msg.Location != nil {
			err.Line = msg.Location.Line
			err.Column = msg.Location.Column + 1
		}
		return nil, err
	}

	return result.Code, nil
}

type compressOptions struct {
	Algorithms []string `yaml:"algorithms"`
	// Threshold is the smallest file, in bytes, worth compressing.
	Threshold int `yaml:"threshold"`
}

var compressExts = map[string]string{
	"gzip": ".gz",
	"zstd": ".zst",
}

func compressPlugin(field string, options map[string]any, p *plan) error {
	opts := compressOptions{Algorithms: []string{"gzip"}}
	if err := config.DecodeOptions(field, options, &opts); err != nil {
		return err
	}

	for i, alg := range opts.Algorithms {
		if _, ok := compressExts[alg]; !ok {
			return &config.Error{Field: fmt.Sprintf("%s.algorithms[%d]", field, i), Msg: fmt.Sprintf("unknown algorithm %q", alg)}
		}
	}

	p.compress = &compressor{algorithms: opts.Algorithms, threshold: opts.Threshold}
	return nil
}

type compressor struct {
	algorithms []string
	threshold  int
}

// Compress returns a precompressed sibling per algorithm for each file at
// least threshold bytes long.
func (c *compressor) Compress(files []File) ([]File, error) {
	var out []File
	for _, f := range files {
		if len(f.Contents) < c.threshold {
			continue
		}
		for _, alg := range c.algorithms {
			data, err := compress(alg, f.Contents)
			if err != nil {
				return nil, fmt.Errorf("failed to %s %s: %w", alg, f.Path, err)
			}
			out = append(out, File{Path: f.Path + compressExts[alg], Contents: data})
		}
	}
	return out, nil
}

func compress(alg string, data []byte) ([]byte, error) {
	switch alg {
	case "gzip":
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "zstd":
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", alg)
	}
}

// DefaultManifestFilename is where the manifest plugin writes by default.
const DefaultManifestFilename = "manifest.json"

type manifestOptions struct {
	Filename string `yaml:"filename"`
}

func manifestPlugin(field string, options map[string]any, p *plan) error {
	opts := manifestOptions{Filename: DefaultManifestFilename}
	if err := config.DecodeOptions(field, options, &opts); err != nil {
		return err
	}

	clean := path.Clean(opts.Filename)
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return &config.Error{Field: field + ".filename", Msg: fmt.Sprintf("%q is outside the output directory", opts.Filename)}
	}

	p.manifest = &manifestWriter{filename: clean}
	return nil
}

type manifestWriter struct {
	filename string
}

func (w *manifestWriter) File(m *Manifest) (File, error) {
	data, err := m.Encode()
	if err != nil {
		return File{}, err
	}
	return File{Path: w.filename, Contents: data}, nil
}
