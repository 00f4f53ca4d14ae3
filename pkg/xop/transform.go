package xop

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/sirosfoundation/go-xop/pkg/xmldom"
)

// Namespace URIs used by the transforms
const (
	NamespaceSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceWSSE   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NamespaceXOP    = "http://www.w3.org/2004/08/xop/include"
)

const (
	usernameTokenPath = "/soap:Envelope/soap:Header/wsse:Security/wsse:UsernameToken"
	xopIncludePath    = "//xop:Include"
)

var transformNamespaces = xmldom.Namespaces{
	"soap": NamespaceSOAP11,
	"wsse": NamespaceWSSE,
	"xop":  NamespaceXOP,
}

// RemoveUsernameToken removes the UsernameToken under the envelope's
// wsse:Security header. The document is left unchanged unless exactly one
// token matches; the number of matches is returned.
func RemoveUsernameToken(doc xmldom.Document) (int, error) {
	nodes, err := doc.Select(usernameTokenPath, transformNamespaces)
	if err != nil {
		return 0, err
	}
	if len(nodes) == 1 {
		if err := doc.Remove(nodes[0]); err != nil {
			return 0, err
		}
	}
	return len(nodes), nil
}

// EmbedAttachment replaces the single xop:Include element of doc with the
// base64 encoding of attachment and returns the element's href. Zero or
// several Include elements are input errors.
func EmbedAttachment(doc xmldom.Document, attachment io.Reader) (string, error) {
	nodes, err := doc.Select(xopIncludePath, transformNamespaces)
	if err != nil {
		return "", err
	}
	switch len(nodes) {
	case 0:
		return "", inputErrorf("could not find xop:Include element in the XML document")
	case 1:
	default:
		return "", inputErrorf("found more than one xop:Include element in the XML document")
	}

	encoded, err := encodeBase64(attachment)
	if err != nil {
		return "", err
	}
	href := nodes[0].Attr("href")
	if err := doc.ReplaceWithText(nodes[0], encoded); err != nil {
		return "", err
	}
	return href, nil
}

// encodeBase64 streams r through a standard base64 encoder without line
// breaks
func encodeBase64(r io.Reader) (string, error) {
	var b strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &b)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}
