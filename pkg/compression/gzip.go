// Package compression implements GZIP content coding for XOP messages
package compression

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/mime"
)

const (
	// EncodingGzip is the gzip content coding
	EncodingGzip = "gzip"
	// EncodingIdentity is the no-op content coding
	EncodingIdentity = "identity"
)

var (
	// ErrTooLarge is returned when decompressed data exceeds the configured limit
	ErrTooLarge = errors.New("decompressed data exceeds limit")
	// ErrUnsupportedEncoding is returned by Decode for codings other than gzip and identity
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)

// Compressor handles payload compression
type Compressor struct {
	compressionLevel int
	// maxSize bounds decompressed output; zero means unlimited
	maxSize int64
}

// NewCompressor creates a new compressor with default compression level
func NewCompressor() *Compressor {
	return &Compressor{
		compressionLevel: gzip.DefaultCompression,
	}
}

// NewCompressorWithLevel creates a new compressor with specified compression level
func NewCompressorWithLevel(level int) *Compressor {
	return &Compressor{
		compressionLevel: level,
	}
}

// WithMaxSize returns a copy of c that refuses to decompress more than n bytes
func (c *Compressor) WithMaxSize(n int64) *Compressor {
	cp := *c
	cp.maxSize = n
	return &cp
}

// Compress compresses data using GZIP
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, c.compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses GZIP data
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	var src io.Reader = reader
	if c.maxSize > 0 {
		src = io.LimitReader(reader, c.maxSize+1)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to read compressed data: %w", err)
	}
	if c.maxSize > 0 && int64(buf.Len()) > c.maxSize {
		return nil, ErrTooLarge
	}

	return buf.Bytes(), nil
}

// Decode undoes the Content-Encoding of data. Only gzip and identity are
// supported.
func (c *Compressor) Decode(encoding string, data []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingIdentity:
		return data, nil
	case EncodingGzip, "x-gzip":
		return c.Decompress(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}
}

// AcceptsGzip reports whether an Accept-Encoding header value allows gzip
func AcceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(part, ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != EncodingGzip && coding != "x-gzip" && coding != "*" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q="); ok && strings.Trim(q, "0.") == "" {
			continue
		}
		return true
	}
	return false
}

// ShouldCompress determines if payload should be compressed based on content type
func ShouldCompress(contentType string) bool {
	// Don't compress already compressed formats
	compressedTypes := map[string]bool{
		"application/gzip":   true,
		"application/zip":    true,
		"application/x-gzip": true,
		"image/jpeg":         true,
		"image/png":          true,
		"video/mp4":          true,
		"audio/mp3":          true,
	}

	return !compressedTypes[mime.ParseContentType(contentType).MediaType]
}
