package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	horizontalWhitespaceRe = regexp.MustCompile(`(?m)[\t\x0b\x0c\r ]+`)
	multiBlankLineRe       = regexp.MustCompile(`\n{3,}`)
)

// normalizeText collapses CRLF/CR to LF, runs of horizontal whitespace to a
// single space, and more than two consecutive newlines to two, so
// whitespace-only re-uploads of the same document hash identically.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalWhitespaceRe.ReplaceAllString(s, " ")
	s = multiBlankLineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// contentHash returns a stable SHA-256 hex digest over a document's
// normalized text and filename, used to detect re-uploads whose normalized
// text and filename match.
func contentHash(text, filename string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{'|'})
	h.Write([]byte(filename))
	return hex.EncodeToString(h.Sum(nil))
}
