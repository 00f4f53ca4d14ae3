package mime

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrMissingBoundary is returned when the Content-Type has no boundary parameter
var ErrMissingBoundary = errors.New("no boundary found")

var dashDash = []byte("--")

// errNoDelimiter marks a body that ran into the end of the stream
var errNoDelimiter = errors.New("multipart: end of stream before delimiter")

// peekBufferSize is the bufio size used by the reader. It bounds how much
// of an attachment is held in memory at any time.
const peekBufferSize = 4096

type readerState int

const (
	stateAwaitingFirstBoundary readerState = iota
	stateReadingHeaders
	stateReadingBody
	stateTerminated
)

// Reader is a forward-only cursor over the parts of a multipart body
type Reader struct {
	br          *bufio.Reader
	contentType ContentType
	state       readerState
	current     *Part

	dashBoundary   []byte // "--boundary"
	nlDashBoundary []byte // "\n--boundary"
}

// Part is one header+body segment of a multipart message. The body is read
// through Read and never extends past the next delimiter line.
type Part struct {
	Header *Header

	r       *Reader
	n       int   // bytes known to belong to the body, ready to be returned
	total   int64 // bytes returned so far
	err     error // set once the body end is known (io.EOF or a read error)
	readErr error // error from the underlying reader
}

// NewReader opens a multipart body declared with the given Content-Type.
// It fails with ErrMissingBoundary if the header has no boundary.
func NewReader(r io.Reader, contentType string) (*Reader, error) {
	ct := ParseContentType(contentType)
	boundary := ct.Boundary()
	if boundary == "" {
		return nil, ErrMissingBoundary
	}
	return NewReaderWithBoundary(r, boundary, ct), nil
}

// NewReaderWithBoundary opens a multipart body with an explicit boundary
func NewReaderWithBoundary(r io.Reader, boundary string, ct ContentType) *Reader {
	b := []byte("\n--" + boundary)
	return &Reader{
		br:             bufio.NewReaderSize(r, peekBufferSize),
		contentType:    ct,
		state:          stateAwaitingFirstBoundary,
		nlDashBoundary: b,
		dashBoundary:   b[1:],
	}
}

// Boundary returns the boundary token
func (r *Reader) Boundary() string {
	return string(r.dashBoundary[2:])
}

// Subtype returns the multipart subtype of the declared Content-Type
func (r *Reader) Subtype() string {
	return r.contentType.Subtype
}

// Param returns a parameter of the declared Content-Type
func (r *Reader) Param(name string) string {
	return r.contentType.Params[name]
}

// NextPart advances to the next part. Any unread body of the previous part
// is skipped first. It returns nil, nil once the terminal delimiter or the
// end of the stream has been reached.
func (r *Reader) NextPart() (*Part, error) {
	if r.current != nil {
		if err := r.current.Close(); err != nil {
			return nil, err
		}
		r.current = nil
	}

	for r.state != stateTerminated {
		line, err := r.br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			// an over-long line cannot be a delimiter; drop it
			for err == bufio.ErrBufferFull {
				_, err = r.br.ReadSlice('\n')
			}
			line = nil
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read delimiter: %w", err)
		}

		switch {
		case r.isFinalBoundary(line):
			r.state = stateTerminated
			return nil, nil
		case r.isBoundaryLine(line):
			r.state = stateReadingHeaders
			part, perr := r.newPart()
			if perr != nil {
				return nil, perr
			}
			r.current = part
			return part, nil
		}

		if err == io.EOF {
			r.state = stateTerminated
		}
		// preamble or the line ending that precedes a delimiter
	}
	return nil, nil
}

func (r *Reader) newPart() (*Part, error) {
	p := &Part{Header: NewHeader(), r: r}
	for {
		line, err := r.br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read part header: %w", err)
		}
		if err == io.EOF {
			// no blank line before end of stream: headers only, empty body
			if name, value, ok := parseHeaderLine(trimEOL(line)); ok {
				p.Header.Set(name, value)
			}
			p.err = io.EOF
			r.state = stateTerminated
			return p, nil
		}
		line = trimEOL(line)
		if line == "" {
			break
		}
		if name, value, ok := parseHeaderLine(line); ok {
			p.Header.Set(name, value)
		}
	}
	r.state = stateReadingBody
	return p, nil
}

// ContentType returns the part's Content-Type, or "" if absent
func (p *Part) ContentType() string {
	return p.Header.Get("Content-Type")
}

// Read reads body bytes. It returns io.EOF at the end of the part.
func (p *Part) Read(d []byte) (int, error) {
	br := p.r.br
	for p.n == 0 && p.err == nil {
		peek, _ := br.Peek(br.Buffered())
		p.n, p.err = scanUntilBoundary(peek, p.r.dashBoundary, p.r.nlDashBoundary, p.total, p.readErr)
		if p.n == 0 && p.err == nil {
			// need more data to decide
			_, p.readErr = br.Peek(len(peek) + 1)
			if p.readErr == io.EOF {
				p.readErr = errNoDelimiter
			}
		}
	}

	if p.n == 0 {
		return 0, p.bodyErr()
	}

	n, _ := br.Read(d[:min(len(d), p.n)])
	if p.readErr == bufio.ErrBufferFull {
		p.readErr = nil
	}
	p.total += int64(n)
	p.n -= n
	if p.n == 0 {
		return n, p.bodyErr()
	}
	return n, nil
}

// bodyErr maps the internal end-of-body state to what callers see. A body
// cut off by the end of the stream still ends with io.EOF, but no further
// parts follow.
func (p *Part) bodyErr() error {
	if p.err == errNoDelimiter {
		p.r.state = stateTerminated
		return io.EOF
	}
	return p.err
}

// Close discards the rest of the body
func (p *Part) Close() error {
	if _, err := io.Copy(io.Discard, p); err != nil {
		return fmt.Errorf("failed to skip part body: %w", err)
	}
	return nil
}

// scanUntilBoundary reports how many leading bytes of buf belong to the
// body and whether the body ends there (io.EOF). A delimiter is
// "\n--boundary" (or "--boundary" at the very start of the body) completed
// as matchAfterPrefix describes. The "\r" of a CRLF right before the
// delimiter is not body data either.
func scanUntilBoundary(buf, dashBoundary, nlDashBoundary []byte, total int64, readErr error) (int, error) {
	if total == 0 && bytes.HasPrefix(buf, dashBoundary) {
		switch matchAfterPrefix(buf, dashBoundary, readErr) {
		case -1:
			// not a delimiter, scan on
		case 0:
			return 0, nil
		case 1:
			return 0, io.EOF
		}
	}
	if total == 0 && len(buf) < len(dashBoundary) && bytes.HasPrefix(dashBoundary, buf) && readErr == nil {
		return 0, nil
	}

	for off := 0; ; {
		i := bytes.Index(buf[off:], nlDashBoundary)
		if i < 0 {
			break
		}
		i += off
		switch matchAfterPrefix(buf[i:], nlDashBoundary, readErr) {
		case 1:
			return trimCR(buf, i), io.EOF
		case 0:
			return trimCR(buf, i), nil
		}
		off = i + 1
	}

	if readErr != nil && readErr != bufio.ErrBufferFull {
		return len(buf), readErr
	}

	// keep back a tail that may be the start of a delimiter
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 && bytes.HasPrefix(nlDashBoundary, buf[i:]) {
		return trimCR(buf, i), nil
	}
	return trimCR(buf, len(buf)), nil
}

// matchAfterPrefix checks the rest of the line after a delimiter candidate
// at the start of buf: +1 for a delimiter, -1 for body data and 0 when more
// input is needed. A delimiter is the prefix, an optional "--", then only
// linear whitespace up to a line end or the end of the stream.
func matchAfterPrefix(buf, prefix []byte, readErr error) int {
	rest := buf[len(prefix):]
	switch {
	case bytes.HasPrefix(rest, dashDash):
		rest = rest[len(dashDash):]
	case len(rest) == 1 && rest[0] == '-':
		if readErr == nil {
			return 0
		}
		return -1
	}
	for _, c := range rest {
		switch c {
		case ' ', '\t', '\r':
		case '\n':
			return +1
		default:
			return -1
		}
	}
	switch readErr {
	case nil:
		return 0
	case errNoDelimiter:
		return +1
	default:
		// the line does not fit the buffer, or the stream failed
		return -1
	}
}

func trimCR(buf []byte, end int) int {
	if end > 0 && buf[end-1] == '\r' {
		return end - 1
	}
	return end
}

func (r *Reader) isBoundaryLine(line []byte) bool {
	if !bytes.HasPrefix(line, r.dashBoundary) {
		return false
	}
	return isLineEnd(line[len(r.dashBoundary):])
}

func (r *Reader) isFinalBoundary(line []byte) bool {
	if !bytes.HasPrefix(line, r.dashBoundary) {
		return false
	}
	rest := line[len(r.dashBoundary):]
	if !bytes.HasPrefix(rest, []byte("--")) {
		return false
	}
	return isLineEnd(rest[2:])
}

// isLineEnd reports whether b is only linear whitespace and an optional line ending
func isLineEnd(b []byte) bool {
	return len(bytes.TrimRight(b, " \t\r\n")) == 0
}

func trimEOL(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
		if n := len(s); n > 0 && s[n-1] == '\r' {
			s = s[:n-1]
		}
	}
	return s
}
