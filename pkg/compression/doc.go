// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression provides GZIP content coding for XOP messages.

The XOP service accepts gzip-encoded request bodies and compresses its
responses when the client allows it. Attachments that are already
compressed (zip, jpeg, png) are sent as-is.

# Compression

Compress a payload:

	compressor := compression.NewCompressor()
	compressed, err := compressor.Compress(payload)

Undo a Content-Encoding, bounding the decompressed size:

	body, err := compressor.WithMaxSize(64<<20).Decode(r.Header.Get("Content-Encoding"), raw)

# Content Type Detection

	if compression.ShouldCompress("text/xml") && compression.AcceptsGzip(r.Header.Get("Accept-Encoding")) {
	    // gzip the response
	}

Not compressed (already compressed):
  - application/gzip
  - application/zip
  - image/jpeg, image/png

# References

  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
  - HTTP Content-Coding RFC 9110 section 8.4: https://www.rfc-editor.org/rfc/rfc9110#section-8.4
*/
package compression
