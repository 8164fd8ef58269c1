package config

// Default returns the descriptor for the single page application layout: one
// "index" bundle, JSX pages under src/jsx, CSS modules and a shared common.js.
func Default(context string) *Descriptor {
	d := &Descriptor{
		Context: context,
		Entry: map[string]Requests{
			"index": {"babel-polyfill", "src/jsx/index.jsx"},
		},
		Output: Output{
			Path:     "static/js",
			Filename: DefaultFilename,
		},
		Resolve: Resolve{
			Extensions: append([]string(nil), DefaultExtensions...),
			Roots:      []string{"src/jsx"},
		},
		Rules: []Rule{
			{
				Test:    `\.jsx?$`,
				Include: []string{"src"},
				Exclude: []string{"node_modules"},
				Use: []Stage{{
					Loader: "babel",
					Options: map[string]any{
						"plugins": []any{"transform-runtime"},
						"presets": []any{"es2015", "stage-0", "react"},
						"compact": false,
					},
				}},
			},
			{
				Test: `\.css$`,
				Use: []Stage{
					{Loader: "style"},
					{Loader: "css", Options: map[string]any{
						"modules":        true,
						"localIdentName": "[name]__[local]___[hash:base64:5]",
					}},
				},
			},
		},
		Plugins: []Plugin{
			{Name: "commons", Options: map[string]any{"filename": "common.js"}},
		},
	}
	return d
}
