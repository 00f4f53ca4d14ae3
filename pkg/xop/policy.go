package xop

import (
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/mime"
)

// Allowlist is an ordered list of content-type prefixes
type Allowlist []string

var (
	// DefaultPart1ContentTypes are accepted for the XML part
	DefaultPart1ContentTypes = Allowlist{
		mime.ContentTypeSOAPXML,
		mime.ContentTypeXOPXML,
		mime.ContentTypeTextXML,
	}
	// DefaultPart2ContentTypes are accepted for the attachment part
	DefaultPart2ContentTypes = Allowlist{
		"application/zip",
		"application/octet-stream",
		"image/jpeg",
		"image/png",
		"application/pdf",
	}
)

// Acceptable reports whether ctype starts with any entry. Prefix matching
// lets "text/xml; charset=UTF-8" pass an entry "text/xml".
func (l Allowlist) Acceptable(ctype string) bool {
	for _, prefix := range l {
		if strings.HasPrefix(ctype, prefix) {
			return true
		}
	}
	return false
}

// ParseAllowlist splits a comma-separated list of optionally double-quoted
// prefixes. Empty entries are dropped since they would match anything.
func ParseAllowlist(s string) Allowlist {
	var l Allowlist
	for _, entry := range strings.Split(s, ",") {
		entry = mime.Unquote(strings.TrimSpace(entry))
		if entry != "" {
			l = append(l, entry)
		}
	}
	return l
}
