package access

import (
	"errors"
	"fmt"
	"strings"
)

// A property path is a dot-separated chain of property names, each with an
// optional index suffix: "owner.orders[2].id", "attrs[color]". Numeric
// index keys address slices and arrays, any key addresses maps.
type token struct {
	name    string
	key     string
	indexed bool
}

func tokenize(path string) ([]token, error) {
	if path == "" {
		return nil, errors.New("access: empty property path")
	}

	segments := strings.Split(path, ".")
	toks := make([]token, 0, len(segments))

	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("access: empty segment in path %q", path)
		}

		tok := token{name: seg}
		if i := strings.IndexByte(seg, '['); i != -1 {
			if !strings.HasSuffix(seg, "]") {
				return nil, fmt.Errorf("access: unterminated index in segment %q", seg)
			}
			tok.name = seg[:i]
			tok.key = seg[i+1 : len(seg)-1]
			tok.indexed = true
			if tok.key == "" {
				return nil, fmt.Errorf("access: empty index in segment %q", seg)
			}
			if strings.ContainsAny(tok.key, "[]") {
				return nil, fmt.Errorf("access: nested index in segment %q", seg)
			}
		}
		toks = append(toks, tok)
	}

	return toks, nil
}
