package mime

import (
	"strings"
)

// Header is an ordered set of MIME header fields. Lookups are
// case-insensitive, names keep the case they were first set with, and a
// later Set for the same name replaces the value in place.
type Header struct {
	names  []string
	values map[string]string
}

// NewHeader creates an empty header
func NewHeader() *Header {
	return &Header{values: make(map[string]string)}
}

// Set stores value under name
func (h *Header) Set(name, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = value
}

// Get returns the value for name, or "" if not present
func (h *Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value for name and whether it was present
func (h *Header) Lookup(name string) (string, bool) {
	if h == nil || h.values == nil {
		return "", false
	}
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Names returns the field names in insertion order
func (h *Header) Names() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len returns the number of fields
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// parseHeaderLine splits "Name: Value". Lines without a colon are
// reported as not ok.
func parseHeaderLine(line string) (name, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:i])
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(line[i+1:]), true
}
