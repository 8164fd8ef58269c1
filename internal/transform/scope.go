package transform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type cssToken struct {
	tt   css.TokenType
	data []byte
}

type blockKind int

const (
	blockRules blockKind = iota
	blockDecls
	blockOther
)

// grouping at-rules whose blocks hold further style rules
var groupingRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@document":  true,
	"@layer":     true,
	"@container": true,
}

// cssSyntaxError is an unbalanced bracket or a malformed token at a byte
// offset into the stylesheet.
type cssSyntaxError struct {
	Offset int
	Msg    string
}

func (e *cssSyntaxError) Error() string {
	return e.Msg
}

var closers = map[css.TokenType]css.TokenType{
	css.LeftBraceToken:       css.RightBraceToken,
	css.LeftBracketToken:     css.RightBracketToken,
	css.LeftParenthesisToken: css.RightParenthesisToken,
	css.FunctionToken:        css.RightParenthesisToken,
}

// tokenize lexes src and rejects unterminated strings, malformed urls and
// brackets that do not pair up.
func tokenize(src []byte) ([]cssToken, error) {
	type open struct {
		tt     css.TokenType
		offset int
		data   string
	}

	l := css.NewLexer(parse.NewInputBytes(src))

	var (
		toks   []cssToken
		stack  []open
		offset int
	)
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, err
			}
			break
		}

		switch tt {
		case css.BadStringToken:
			return nil, &cssSyntaxError{Offset: offset, Msg: "unterminated string"}
		case css.BadURLToken:
			return nil, &cssSyntaxError{Offset: offset, Msg: "malformed url"}
		case css.LeftBraceToken, css.LeftBracketToken, css.LeftParenthesisToken, css.FunctionToken:
			stack = append(stack, open{tt: tt, offset: offset, data: string(data)})
		case css.RightBraceToken, css.RightBracketToken, css.RightParenthesisToken:
			if len(stack) == 0 || closers[stack[len(stack)-1].tt] != tt {
				return nil, &cssSyntaxError{Offset: offset, Msg: fmt.Sprintf("unexpected %q", data)}
			}
			stack = stack[:len(stack)-1]
		}

		toks = append(toks, cssToken{tt: tt, data: append([]byte(nil), data...)})
		offset += len(data)
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, &cssSyntaxError{Offset: top.offset, Msg: fmt.Sprintf("unclosed %q", top.data)}
	}
	return toks, nil
}

// syntaxPosition returns the 1-based line and column of a tokenize failure.
func syntaxPosition(src []byte, err error) (int, int, bool) {
	var serr *cssSyntaxError
	if !errors.As(err, &serr) {
		return 0, 0, false
	}
	line, col, _ := parse.Position(bytes.NewReader(src), serr.Offset)
	return line, col, true
}

// scopeClasses rewrites every local class selector through rename and returns
// the rewritten stylesheet with the local to scoped mapping. Selectors inside
// :global(...) keep their names and lose the wrapper; :local(...) is unwrapped.
// A bare :global or :local switches mode until the end of the selector.
func scopeClasses(src []byte, rename func(local string) string) ([]byte, map[string]string, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, nil, err
	}

	var (
		out     bytes.Buffer
		exports = map[string]string{}
		stack   []blockKind
		atRule  string
		global  bool
		depth   int
		wrapped bool
		mode    bool
	)

	selectorContext := func() bool {
		return atRule == "" && (len(stack) == 0 || stack[len(stack)-1] == blockRules)
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]

		switch tok.tt {
		case css.AtKeywordToken:
			if len(stack) == 0 || stack[len(stack)-1] == blockRules {
				atRule = strings.ToLower(string(tok.data))
			}

		case css.LeftBraceToken:
			switch {
			case len(stack) > 0 && stack[len(stack)-1] != blockRules:
				stack = append(stack, blockOther)
			case atRule == "":
				stack = append(stack, blockDecls)
			case groupingRules[atRule]:
				stack = append(stack, blockRules)
			default:
				stack = append(stack, blockOther)
			}
			atRule = ""
			global, wrapped, depth, mode = false, false, 0, false

		case css.CommaToken:
			if selectorContext() && !wrapped {
				mode = false
			}

		case css.RightBraceToken:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			atRule = ""

		case css.SemicolonToken:
			if len(stack) == 0 || stack[len(stack)-1] == blockRules {
				atRule = ""
			}

		case css.ColonToken:
			if selectorContext() && !wrapped && i+1 < len(toks) && toks[i+1].tt == css.FunctionToken {
				fn := strings.ToLower(string(toks[i+1].data))
				if fn == "global(" || fn == "local(" {
					global = fn == "global("
					wrapped = true
					depth = 0
					i++
					continue
				}
			}
			if selectorContext() && !wrapped && i+1 < len(toks) && toks[i+1].tt == css.IdentToken {
				ident := strings.ToLower(string(toks[i+1].data))
				if ident == "global" || ident == "local" {
					mode = ident == "global"
					i++
					if i+1 < len(toks) && toks[i+1].tt == css.WhitespaceToken {
						i++
					}
					continue
				}
			}

		case css.FunctionToken, css.LeftParenthesisToken:
			if wrapped {
				depth++
			}

		case css.RightParenthesisToken:
			if wrapped {
				if depth == 0 {
					wrapped, global = false, false
					continue
				}
				depth--
			}

		case css.DelimToken:
			keep := mode
			if wrapped {
				keep = global
			}
			if string(tok.data) == "." && selectorContext() && !keep &&
				i+1 < len(toks) && toks[i+1].tt == css.IdentToken {
				local := string(toks[i+1].data)
				scoped, ok := exports[local]
				if !ok {
					scoped = rename(local)
					exports[local] = scoped
				}
				out.WriteByte('.')
				out.WriteString(scoped)
				i++
				continue
			}
		}

		out.Write(tok.data)
	}

	return out.Bytes(), exports, nil
}
