package assets

import "github.com/spf13/afero"

type Option func(*Pipeline)

// WithFs sets the filesystem sources are read from and artifacts written to.
// The default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithMinify minifies emitted scripts even when no minify plugin is configured.
func WithMinify(minify bool) Option {
	return func(p *Pipeline) {
		p.minify = minify
	}
}
