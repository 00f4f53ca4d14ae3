// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goxop extracts, inspects and re-encodes XOP/MTOM multipart SOAP
messages: an XML envelope part plus one binary attachment part.

# Overview

go-xop reads multipart/related bodies as a stream, locating boundaries in
opaque binary data without buffering whole attachments, and tolerates the
variations found in real traffic: quoted parameters, boundary tokens full of
dashes and equals signs, and both CRLF and LF line endings. Attachment bytes
are preserved exactly when a message is re-serialized.

# Package Structure

	github.com/sirosfoundation/go-xop/pkg/mime        - Streaming multipart reader and writer
	github.com/sirosfoundation/go-xop/pkg/xop         - XOP actions, host flow model
	github.com/sirosfoundation/go-xop/pkg/xmldom      - Namespace-aware XML selection and editing
	github.com/sirosfoundation/go-xop/pkg/transport   - HTTPS attachment fetch with TLS 1.2/1.3
	github.com/sirosfoundation/go-xop/pkg/compression - GZIP content coding

The xopd command (cmd/xopd) serves the actions over HTTP, optionally behind
OAuth2 bearer authentication, and runs them over files.

# Quick Start

	h := xop.NewHandler(&xop.Config{
	    Properties: map[string]string{"action": "TRANSFORM_TO_EMBEDDED"},
	})

	flow := xop.NewMemoryFlow()
	msg := xop.NewMemoryMessage(contentType, body)
	flow.SetMessage("message", msg)

	if err := h.Run(ctx, flow); err != nil {
	    log.Fatalf("transform failed: %v", err)
	}
	embedded := msg.Bytes() // text/xml with the attachment inlined as base64

# Actions

	EDIT_1                 remove the WS-Security UsernameToken, re-emit the multipart
	EXTRACT_SOAP           expose the envelope as text and the attachment as base64
	TRANSFORM_TO_EMBEDDED  inline the attachment in place of xop:Include
	GET_BASE64STR          fetch an attachment from a document store

# Thread Safety

A Handler holds read-only configuration and may be shared between
goroutines. Readers and writers from pkg/mime belong to one invocation.
*/
package goxop
