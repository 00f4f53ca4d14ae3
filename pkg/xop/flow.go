package xop

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Message is a host message: named headers and a replaceable content stream
type Message interface {
	// Header returns a header value, or "" when the header is absent.
	// Names are case-insensitive.
	Header(name string) string
	SetHeader(name, value string)
	// Content opens the current content. The caller closes the stream.
	Content() (io.ReadCloser, error)
	SetContent(data []byte)
}

// Flow is the host context of one invocation
type Flow interface {
	// Message returns the named message, or nil if the flow has none
	Message(name string) Message
	SetVariable(name, value string)
	// ResolveReferences expands {name} references in s
	ResolveReferences(s string) string
}

// MemoryMessage is a Message held in memory
type MemoryMessage struct {
	mu      sync.Mutex
	headers map[string]string
	content []byte
}

// NewMemoryMessage creates a message with the given content type and content
func NewMemoryMessage(contentType string, content []byte) *MemoryMessage {
	m := &MemoryMessage{headers: make(map[string]string), content: content}
	if contentType != "" {
		m.SetHeader("Content-Type", contentType)
	}
	return m
}

func (m *MemoryMessage) Header(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers[strings.ToLower(name)]
}

func (m *MemoryMessage) SetHeader(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[strings.ToLower(name)] = value
}

func (m *MemoryMessage) Content() (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.content)), nil
}

func (m *MemoryMessage) SetContent(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = data
}

// Bytes returns the current content
func (m *MemoryMessage) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

// MemoryFlow is a Flow backed by maps. It is used by the HTTP server, the
// CLI and tests.
type MemoryFlow struct {
	mu        sync.Mutex
	messages  map[string]Message
	variables map[string]string
}

// NewMemoryFlow creates an empty flow
func NewMemoryFlow() *MemoryFlow {
	return &MemoryFlow{
		messages:  make(map[string]Message),
		variables: make(map[string]string),
	}
}

// SetMessage registers msg under name
func (f *MemoryFlow) SetMessage(name string, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[name] = msg
}

func (f *MemoryFlow) Message(name string) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[name]
	if !ok {
		return nil
	}
	return msg
}

func (f *MemoryFlow) SetVariable(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variables[name] = value
}

// Variable returns a variable and whether it is set
func (f *MemoryFlow) Variable(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.variables[name]
	return v, ok
}

// Variables returns a copy of all variables
func (f *MemoryFlow) Variables() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.variables))
	for k, v := range f.variables {
		out[k] = v
	}
	return out
}

// ResolveReferences replaces each {name} with the value of the variable
// name. Unknown references resolve to the empty string; an unterminated
// brace is kept literally.
func (f *MemoryFlow) ResolveReferences(s string) string {
	if !strings.Contains(s, "{") {
		return s
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(s[:open])
		b.WriteString(f.variables[strings.TrimSpace(s[open+1:open+end])])
		s = s[open+end+1:]
	}
	b.WriteString(s)
	return b.String()
}
