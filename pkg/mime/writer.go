package mime

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrWriterClosed is returned for any write after Close
	ErrWriterClosed = errors.New("multipart writer is closed")
	// ErrHeadersWritten is returned when a header field is set after the body was opened
	ErrHeadersWritten = errors.New("part headers already written")
)

// Writer emits a multipart body: delimiter lines, part headers and part
// bodies, followed by the terminal delimiter on Close.
type Writer struct {
	w           io.Writer
	boundary    string
	contentType string
	last        *PartWriter
	parts       int
	closed      bool
}

// PartWriter is the output side of one part. Header fields set before the
// first Write are emitted in order when the body is opened.
type PartWriter struct {
	mw      *Writer
	header  *Header
	flushed bool
}

// NewWriter creates a writer for the given boundary. contentType is the
// Content-Type of the enclosing message and is only echoed back by
// ContentType. An empty boundary is replaced by a generated one.
func NewWriter(w io.Writer, boundary, contentType string) *Writer {
	if boundary == "" {
		boundary = NewBoundary()
	}
	if contentType == "" {
		contentType = fmt.Sprintf("%s; boundary=%q", ContentTypeMultipartRelated, boundary)
	}
	return &Writer{
		w:           w,
		boundary:    boundary,
		contentType: contentType,
	}
}

// Boundary returns the boundary token
func (w *Writer) Boundary() string {
	return w.boundary
}

// ContentType returns the Content-Type of the multipart message
func (w *Writer) ContentType() string {
	return w.contentType
}

// NewPart finishes the previous part, writes a delimiter line and returns
// the writer for the new part.
func (w *Writer) NewPart() (*PartWriter, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	if err := w.finishPart(); err != nil {
		return nil, err
	}

	delim := "--" + w.boundary + "\r\n"
	if w.parts > 0 {
		delim = "\r\n" + delim
	}
	if _, err := io.WriteString(w.w, delim); err != nil {
		return nil, fmt.Errorf("failed to write delimiter: %w", err)
	}

	w.parts++
	w.last = &PartWriter{mw: w, header: NewHeader()}
	return w.last, nil
}

// Close finishes the last part and writes the terminal delimiter. Closing a
// writer with no parts produces an empty multipart body.
func (w *Writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.finishPart(); err != nil {
		return err
	}
	w.closed = true

	delim := "--" + w.boundary + "--\r\n"
	if w.parts > 0 {
		delim = "\r\n" + delim
	}
	if _, err := io.WriteString(w.w, delim); err != nil {
		return fmt.Errorf("failed to write final delimiter: %w", err)
	}
	return nil
}

func (w *Writer) finishPart() error {
	if w.last == nil {
		return nil
	}
	err := w.last.flushHeaders()
	w.last = nil
	return err
}

// SetHeaderField sets a part header field
func (p *PartWriter) SetHeaderField(name, value string) error {
	if p.mw.closed {
		return ErrWriterClosed
	}
	if p.flushed {
		return ErrHeadersWritten
	}
	p.header.Set(name, value)
	return nil
}

// CopyHeader sets every field of h on the part, in order
func (p *PartWriter) CopyHeader(h *Header) error {
	for _, name := range h.Names() {
		if err := p.SetHeaderField(name, h.Get(name)); err != nil {
			return err
		}
	}
	return nil
}

// Write writes body bytes, emitting the headers first if needed
func (p *PartWriter) Write(b []byte) (int, error) {
	if p.mw.closed || p.mw.last != p {
		return 0, ErrWriterClosed
	}
	if err := p.flushHeaders(); err != nil {
		return 0, err
	}
	return p.mw.w.Write(b)
}

func (p *PartWriter) flushHeaders() error {
	if p.flushed {
		return nil
	}
	p.flushed = true

	var b strings.Builder
	for _, name := range p.header.Names() {
		fmt.Fprintf(&b, "%s: %s\r\n", name, p.header.Get(name))
	}
	b.WriteString("\r\n")
	if _, err := io.WriteString(p.mw.w, b.String()); err != nil {
		return fmt.Errorf("failed to write part headers: %w", err)
	}
	return nil
}

// NewBoundary generates a MIME boundary string
func NewBoundary() string {
	return fmt.Sprintf("----=_Part_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
}
