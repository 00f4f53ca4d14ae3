// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport implements the outbound HTTPS client used by the
GET_BASE64STR action to fetch an attachment from a remote document store.

# TLS Configuration

The client prefers TLS 1.3 with fallback to TLS 1.2:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3

For TLS 1.2, the following cipher suites are recommended:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Client Usage

	client := transport.NewHTTPSClient(nil)
	body, err := client.Fetch(ctx, "https://docs.example.com/documents/42/body",
	    http.Header{"X-Api-Key": []string{apiKey}})

Fetch makes exactly one attempt. Non-200 responses and bodies larger than
MaxResponseSize are errors.

# References

  - TLS 1.3 RFC 8446: https://datatracker.ietf.org/doc/html/rfc8446
  - TLS 1.2 RFC 5246: https://datatracker.ietf.org/doc/html/rfc5246
*/
package transport
