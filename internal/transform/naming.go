package transform

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	hashToken    = regexp.MustCompile(`\[(?:(\w+):)?hash(?::([a-z]+\d*))?(?::(\d+))?\]`)
	invalidIdent = regexp.MustCompile(`[^a-zA-Z0-9\-_\x{00A0}-\x{FFFF}]`)
	leadingDigit = regexp.MustCompile(`^((-?[0-9])|--)`)
)

// identNamer expands a class naming template such as
// "[name]__[local]___[hash:base64:5]".
type identNamer struct {
	template   string
	hashPrefix string
}

// Name returns the scoped class name for local declared in the file with the
// given context-relative id.
func (n identNamer) Name(id, local string) string {
	base := path.Base(id)
	ext := path.Ext(base)
	dir := path.Dir(id)
	if dir == "." {
		dir = ""
	} else {
		dir += "/"
	}

	out := strings.NewReplacer(
		"[local]", local,
		"[name]", strings.TrimSuffix(base, ext),
		"[ext]", strings.TrimPrefix(ext, "."),
		"[path]", dir,
	).Replace(n.template)

	content := n.hashPrefix + id + "+" + local
	out = hashToken.ReplaceAllStringFunc(out, func(tok string) string {
		m := hashToken.FindStringSubmatch(tok)
		length := 0
		if m[3] != "" {
			length, _ = strconv.Atoi(m[3])
		}
		return digest(m[1], m[2], content, length)
	})

	out = invalidIdent.ReplaceAllString(out, "-")
	return leadingDigit.ReplaceAllString(out, "_$1")
}

func digest(algorithm, encoding, content string, length int) string {
	var h hash.Hash
	switch algorithm {
	case "sha1":
		h = sha1.New()
	case "sha256":
		h = sha256.New()
	default:
		h = md5.New()
	}
	h.Write([]byte(content))
	sum := h.Sum(nil)

	var s string
	switch {
	case strings.HasPrefix(encoding, "base64"):
		s = base64.StdEncoding.EncodeToString(sum)
	case strings.HasPrefix(encoding, "base58"):
		s = base58.Encode(sum)
	default:
		s = hex.EncodeToString(sum)
	}

	if length > 0 && length < len(s) {
		s = s[:length]
	}
	return s
}
