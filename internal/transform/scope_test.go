package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper(local string) string { return "s_" + local }

func TestScopeClasses(t *testing.T) {
	src := `.title { color: red; margin: .5em }
.title:hover, .nav .item > a.link { color: blue }
#main.wide { width: 100% }
@media (min-width: 1.5em) {
  .title { font-size: 2em }
}
@font-face { font-family: x; src: url(a.woff) }
@keyframes spin { from { opacity: 0 } to { opacity: 1 } }
:global(.keep) .inner { color: green }
:local(.own) { color: black }
`

	out, exports, err := scopeClasses([]byte(src), upper)
	require.NoError(t, err)

	want := `.s_title { color: red; margin: .5em }
.s_title:hover, .s_nav .s_item > a.s_link { color: blue }
#main.s_wide { width: 100% }
@media (min-width: 1.5em) {
  .s_title { font-size: 2em }
}
@font-face { font-family: x; src: url(a.woff) }
@keyframes spin { from { opacity: 0 } to { opacity: 1 } }
.keep .s_inner { color: green }
.s_own { color: black }
`
	assert.Equal(t, want, string(out))
	assert.Equal(t, map[string]string{
		"title": "s_title",
		"nav":   "s_nav",
		"item":  "s_item",
		"link":  "s_link",
		"wide":  "s_wide",
		"inner": "s_inner",
		"own":   "s_own",
	}, exports)
}

func TestScopeClasses_Empty(t *testing.T) {
	out, exports, err := scopeClasses(nil, upper)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, exports)
}

func TestScopeClasses_GlobalMode(t *testing.T) {
	src := `:global .app .header, .nav { color: red }
.list :global .item :local(.own) { color: blue }
:local .card { color: green }
`

	out, exports, err := scopeClasses([]byte(src), upper)
	require.NoError(t, err)

	want := `.app .header, .s_nav { color: red }
.s_list .item .s_own { color: blue }
.s_card { color: green }
`
	assert.Equal(t, want, string(out))
	assert.Equal(t, map[string]string{
		"nav":  "s_nav",
		"list": "s_list",
		"own":  "s_own",
		"card": "s_card",
	}, exports)
}

func TestTokenize_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
		msg  string
	}{
		{name: "extra close", src: ".title { color: red;\n.other { color: blue }\n}}} .x {{{", line: 3, col: 2, msg: `unexpected "}"`},
		{name: "unclosed block", src: ".a { color: red;\n.b {\n", line: 2, col: 4, msg: `unclosed "{"`},
		{name: "mismatched", src: ".a { width: calc(1px + 2px } ", line: 1, col: 28, msg: `unexpected "}"`},
		{name: "unterminated string", src: ".a { content: \"x\n}", line: 1, col: 15, msg: "unterminated string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokenize([]byte(tt.src))
			require.Error(t, err)
			assert.EqualError(t, err, tt.msg)

			line, col, ok := syntaxPosition([]byte(tt.src), err)
			require.True(t, ok)
			assert.Equal(t, tt.line, line)
			assert.Equal(t, tt.col, col)
		})
	}
}
