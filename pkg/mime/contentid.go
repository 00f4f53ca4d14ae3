package mime

import (
	"strings"
)

// NormalizeContentID strips the "cid:" scheme and angle brackets so that a
// Content-ID header and an xop:Include href can be compared
func NormalizeContentID(contentID string) string {
	contentID = strings.TrimSpace(contentID)
	contentID = strings.TrimPrefix(contentID, "cid:")
	contentID = strings.TrimPrefix(contentID, "<")
	contentID = strings.TrimSuffix(contentID, ">")
	return contentID
}

// AddContentIDBrackets adds < and > to Content-ID if not present
func AddContentIDBrackets(contentID string) string {
	if !strings.HasPrefix(contentID, "<") {
		contentID = "<" + contentID
	}
	if !strings.HasSuffix(contentID, ">") {
		contentID = contentID + ">"
	}
	return contentID
}
