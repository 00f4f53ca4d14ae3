// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime implements streaming multipart reading and writing for
XOP/MTOM packaged SOAP messages.

# MIME Structure

An MTOM message is a multipart/related body with the SOAP envelope in the
first part and the binary attachment in the second:

	Content-Type: multipart/related;
	    type="application/xop+xml";
	    start="<rootpart@example.org>";
	    boundary="----=_Part_..."

	------=_Part_...
	Content-Type: application/xop+xml; charset=UTF-8
	Content-ID: <rootpart@example.org>

	<soap:Envelope>... <xop:Include href="cid:payload-1"/> ...</soap:Envelope>

	------=_Part_...
	Content-Type: application/octet-stream
	Content-ID: <payload-1>
	Content-Transfer-Encoding: binary

	[Binary payload data]
	------=_Part_...--

# Reading

The reader is a forward-only cursor. Each part body stops exactly before
the next delimiter line, so attachments can be copied through without
being held in memory:

	r, err := mime.NewReader(body, contentType)
	for {
	    part, err := r.NextPart()
	    if err != nil {
	        return err
	    }
	    if part == nil {
	        break // terminal delimiter or end of stream
	    }
	    io.Copy(dst, part)
	}

Both CRLF and bare LF line endings are accepted. Boundary tokens are
matched literally, so tokens such as "----=_Part_1_412146264.1583859202545"
need no special treatment.

# Writing

	w := mime.NewWriter(out, boundary, contentType)
	pw, _ := w.NewPart()
	pw.SetHeaderField("Content-Type", "application/zip")
	io.Copy(pw, attachment)
	w.Close()

Header fields are emitted in the order they were set, with their original
case.

# Content-Type Parameters

[ParseParams] is deliberately lenient: it accepts whitespace around "=",
quoted values containing ";" or "=", and empty values.

# References

  - MIME Multipart: https://datatracker.ietf.org/doc/html/rfc2046
  - XOP: https://www.w3.org/TR/xop10/
  - MTOM: https://www.w3.org/TR/soap12-mtom/
*/
package mime
