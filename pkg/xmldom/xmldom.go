// Package xmldom provides the narrow XML capability the XOP handler needs:
// parse, namespace-aware node selection, node removal and replacement,
// and serialization.
package xmldom

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Namespaces maps query prefixes to namespace URIs
type Namespaces map[string]string

// Node is an element selected from a Document
type Node interface {
	// Local returns the element's local name
	Local() string
	// NamespaceURI returns the resolved namespace of the element
	NamespaceURI() string
	// Attr returns an attribute value by (unprefixed) key
	Attr(key string) string
}

// Document is a parsed, mutable XML document
type Document interface {
	// Select evaluates a location path such as
	// "/soap:Envelope/soap:Header" or "//xop:Include". Prefixes in the
	// path are resolved with ns, never against the document's own prefixes.
	Select(path string, ns Namespaces) ([]Node, error)
	// Remove detaches n together with a whitespace-only text node directly
	// before it.
	Remove(n Node) error
	// ReplaceWithText replaces n with a text node holding text
	ReplaceWithText(n Node, text string) error
	// Bytes serializes the document
	Bytes() ([]byte, error)
}

// Parser builds Documents
type Parser interface {
	Parse(r io.Reader) (Document, error)
}

// NewParser returns the etree-backed parser
func NewParser() Parser {
	return etreeParser{}
}

type etreeParser struct{}

func (etreeParser) Parse(r io.Reader) (Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse XML: no root element")
	}
	return &etreeDocument{doc: doc}, nil
}

type etreeDocument struct {
	doc *etree.Document
}

type etreeNode struct {
	el *etree.Element
}

func (n etreeNode) Local() string        { return n.el.Tag }
func (n etreeNode) NamespaceURI() string { return n.el.NamespaceURI() }
func (n etreeNode) Attr(key string) string {
	return n.el.SelectAttrValue(key, "")
}

// compilePath rewrites a prefixed location path into an etree path whose
// steps match on local name and namespace URI, so prefixes in the query
// never depend on the prefixes used by the document.
func compilePath(path string, ns Namespaces) (etree.Path, error) {
	if !strings.HasPrefix(path, "/") {
		return etree.Path{}, fmt.Errorf("unsupported path %q: must be absolute", path)
	}

	var b strings.Builder
	rest := path
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "//"):
			b.WriteString("//")
			rest = rest[2:]
		case strings.HasPrefix(rest, "/"):
			b.WriteString("/")
			rest = rest[1:]
		default:
			return etree.Path{}, fmt.Errorf("invalid path %q", path)
		}

		end := strings.IndexByte(rest, '/')
		if end < 0 {
			end = len(rest)
		}
		name := rest[:end]
		rest = rest[end:]
		if name == "" {
			return etree.Path{}, fmt.Errorf("invalid path %q: empty step", path)
		}

		space, local := "", name
		if prefix, l, ok := strings.Cut(name, ":"); ok {
			uri, known := ns[prefix]
			if !known {
				return etree.Path{}, fmt.Errorf("invalid path %q: unbound prefix %q", path, prefix)
			}
			space, local = uri, l
		}
		if strings.ContainsAny(local, "[]'\"") || strings.ContainsAny(space, "[]'") {
			return etree.Path{}, fmt.Errorf("invalid path %q: unsupported characters in step %q", path, name)
		}

		b.WriteString("*")
		if local != "*" {
			fmt.Fprintf(&b, "[local-name()='%s']", local)
		}
		fmt.Fprintf(&b, "[namespace-uri()='%s']", space)
	}

	compiled, err := etree.CompilePath(b.String())
	if err != nil {
		return etree.Path{}, fmt.Errorf("invalid path %q: %w", path, err)
	}
	return compiled, nil
}

func (d *etreeDocument) Select(path string, ns Namespaces) ([]Node, error) {
	compiled, err := compilePath(path, ns)
	if err != nil {
		return nil, err
	}

	found := d.doc.FindElementsPath(compiled)
	nodes := make([]Node, 0, len(found))
	for _, el := range found {
		nodes = append(nodes, etreeNode{el: el})
	}
	return nodes, nil
}

func (d *etreeDocument) element(n Node) (*etree.Element, error) {
	en, ok := n.(etreeNode)
	if !ok {
		return nil, fmt.Errorf("node %T does not belong to this document", n)
	}
	if en.el.Parent() == nil {
		return nil, fmt.Errorf("node %s is detached", en.el.Tag)
	}
	return en.el, nil
}

func (d *etreeDocument) Remove(n Node) error {
	el, err := d.element(n)
	if err != nil {
		return err
	}
	parent := el.Parent()

	if i := el.Index(); i > 0 {
		if cd, ok := parent.Child[i-1].(*etree.CharData); ok && strings.TrimSpace(cd.Data) == "" {
			parent.RemoveChildAt(i - 1)
		}
	}
	parent.RemoveChild(el)
	return nil
}

func (d *etreeDocument) ReplaceWithText(n Node, text string) error {
	el, err := d.element(n)
	if err != nil {
		return err
	}
	parent := el.Parent()
	i := el.Index()
	parent.RemoveChildAt(i)
	parent.InsertChildAt(i, etree.NewText(text))
	return nil
}

func (d *etreeDocument) Bytes() ([]byte, error) {
	out, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize XML: %w", err)
	}
	return out, nil
}
