// Package fingerprint computes a stable content hash of page markup. The
// hash ignores volatile content (scripts, styles, embeds, comments, data-*
// attributes, generated ids, whitespace layout) and changes when visible
// structure or text changes.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// generatedID matches id values that look like session tokens.
var generatedID = regexp.MustCompile(`^[a-zA-Z0-9]{20,}$`)

var whitespace = regexp.MustCompile(`\s+`)

// Compute returns the SHA-256 hex digest of the normalised markup.
func Compute(markup string) string {
	h := sha256.Sum256([]byte(Normalize(markup)))
	return hex.EncodeToString(h[:])
}

// Normalize rewrites markup into the canonical form that Compute hashes.
// Exposed for debugging cache misses.
func Normalize(markup string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))

	// skip holds the element whose content is being dropped.
	var skip atom.Atom

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				// Malformed tail: keep what the tokenizer could not parse.
				b.Write(z.Raw())
			}
			break
		}

		if skip != 0 {
			if tt == html.EndTagToken {
				name, _ := z.TagName()
				if atom.Lookup(name) == skip {
					skip = 0
				}
			}
			continue
		}

		switch tt {
		case html.CommentToken:
			continue
		case html.DoctypeToken:
			b.Write(z.Raw())
		case html.TextToken:
			b.Write(z.Raw())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if isVolatileElement(tok.DataAtom) {
				if tt == html.StartTagToken {
					skip = tok.DataAtom
				}
				continue
			}
			writeTag(&b, tok, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			name, _ := z.TagName()
			if isVolatileElement(atom.Lookup(name)) {
				continue
			}
			b.WriteString("</")
			b.Write(bytes.ToLower(name))
			b.WriteByte('>')
		}
	}

	return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " "))
}

func isVolatileElement(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Iframe, atom.Noscript:
		return true
	}
	return false
}

func writeTag(b *strings.Builder, tok html.Token, selfClosing bool) {
	b.WriteByte('<')
	b.WriteString(tok.Data)
	for _, a := range tok.Attr {
		if isVolatileAttr(a) {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString("/")
	}
	b.WriteByte('>')
}

func isVolatileAttr(a html.Attribute) bool {
	if strings.HasPrefix(a.Key, "data-") {
		return true
	}
	return a.Key == "id" && generatedID.MatchString(a.Val)
}
