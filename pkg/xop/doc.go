// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package xop runs the XOP/MTOM actions over a two-part multipart message.

A message carries an XML envelope in part 1 and one binary attachment in
part 2. The Handler reads the message named by the "source" property from
a Flow and runs one of four actions:

	EDIT_1                 remove the WS-Security UsernameToken and re-emit
	                       the multipart message with the same boundary
	EXTRACT_SOAP           expose part 1 as text and part 2 as base64
	TRANSFORM_TO_EMBEDDED  replace the single xop:Include with the base64
	                       attachment, producing a plain text/xml message
	GET_BASE64STR          fetch the attachment from a document store

# Usage

	h := xop.NewHandler(&xop.Config{
		Properties: map[string]string{"action": "EXTRACT_SOAP"},
		Logger:     logger,
	})

	flow := xop.NewMemoryFlow()
	flow.SetMessage("message", xop.NewMemoryMessage(contentType, body))
	if h.Execute(ctx, flow) == xop.ResultSuccess {
		xml, _ := flow.Variable("xop_extracted_xml")
		...
	}

# Outputs

Outputs are flow variables prefixed with "xop_". They are published only
when the action succeeds. A failed action sets xop_error and, when the
debug property is true, xop_stacktrace.

Part content types are checked against prefix allowlists, configurable
with the part1-ctypes and part2-ctypes properties.
*/
package xop
