package mime

import (
	"strings"
)

const (
	// ContentTypeMultipartRelated is the MIME type for multipart/related
	ContentTypeMultipartRelated = "multipart/related"
	// ContentTypeTextXML is the MIME type for text XML
	ContentTypeTextXML = "text/xml"
	// ContentTypeSOAPXML is the MIME type for SOAP 1.2
	ContentTypeSOAPXML = "application/soap+xml"
	// ContentTypeXOPXML is the MIME type of an XOP root part
	ContentTypeXOPXML = "application/xop+xml"
)

const multipartPrefix = "multipart/"

// ContentType is a parsed Content-Type header value
type ContentType struct {
	MediaType string
	Subtype   string
	Params    map[string]string
}

// ParseContentType parses a Content-Type header. It never fails; missing
// pieces are left empty.
func ParseContentType(header string) ContentType {
	mediaType := header
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return ContentType{
		MediaType: strings.ToLower(strings.TrimSpace(mediaType)),
		Subtype:   ParseSubtype(header),
		Params:    ParseParams(header),
	}
}

// Boundary returns the boundary parameter, or "" when absent
func (ct ContentType) Boundary() string {
	return ct.Params["boundary"]
}

// IsMultipart reports whether the media type is multipart/*
func (ct ContentType) IsMultipart() bool {
	return strings.HasPrefix(ct.MediaType, multipartPrefix)
}

// ParseSubtype returns the token after "multipart/" up to the first ";"
// or the end of the header, trimmed. It returns "" if the header does not
// start with "multipart/".
func ParseSubtype(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(multipartPrefix) || !strings.EqualFold(header[:len(multipartPrefix)], multipartPrefix) {
		return ""
	}
	subtype := header[len(multipartPrefix):]
	if i := strings.IndexByte(subtype, ';'); i >= 0 {
		subtype = subtype[:i]
	}
	return strings.TrimSpace(subtype)
}

// ParseParams returns the parameters of a Content-Type header keyed by
// lower-cased name. Quoted values may contain ";" and "="; they are
// returned unquoted. Parameters without "=" are skipped.
//
//	ParseParams(`multipart/mixed;test="quoted=can contain;";boundary=qwerty`)
//	// map[boundary:qwerty test:quoted=can contain;]
func ParseParams(header string) map[string]string {
	params := make(map[string]string)

	i := strings.IndexByte(header, ';')
	if i < 0 {
		return params
	}
	s := header[i+1:]

	for len(s) > 0 {
		// name
		end := strings.IndexAny(s, "=;")
		if end < 0 {
			break
		}
		if s[end] == ';' {
			// no '=' in this segment
			s = s[end+1:]
			continue
		}
		name := strings.ToLower(strings.TrimSpace(s[:end]))
		s = strings.TrimLeft(s[end+1:], " \t")

		// value
		var value string
		if strings.HasPrefix(s, `"`) {
			value, s = consumeQuoted(s)
			if j := strings.IndexByte(s, ';'); j >= 0 {
				s = s[j+1:]
			} else {
				s = ""
			}
		} else if j := strings.IndexByte(s, ';'); j >= 0 {
			value, s = strings.TrimSpace(s[:j]), s[j+1:]
		} else {
			value, s = strings.TrimSpace(s), ""
		}

		if name != "" {
			params[name] = value
		}
	}

	return params
}

// consumeQuoted reads a quoted string starting at s[0] == '"' and returns
// the unquoted value and the remainder after the closing quote. An
// unterminated string runs to the end of s.
func consumeQuoted(s string) (string, string) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), s[i+1:]
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), ""
}

// Unquote strips one pair of surrounding double quotes, if present
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
