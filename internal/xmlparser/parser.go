// =============================================================================
// CFDI XML to XLSX - XML Parser Module
// =============================================================================
//
// This module parses raw CFDI documents into a generic element tree. The
// converter never binds XML to fixed structs because the same logical field
// lives under different namespaces depending on the document version
// (cfd/3 vs cfd/4, Pagos vs Pagos20). Elements and attributes are matched on
// their local names only.
//
// FEATURES:
//   - UTF-8 BOM tolerant
//   - ISO-8859-1 and Windows-1252 declared encodings
//   - Root classification (Comprobante, Retenciones, unknown)
//   - Nil-safe navigation with an explicit optional accessor (see path.go)
//
// =============================================================================

package xmlparser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// =============================================================================
// NODE TREE
// =============================================================================

// Node is one XML element with its attributes and child elements.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*Node    `xml:",any"`
	Text     string     `xml:",chardata"`
}

// Name returns the local name of the element ("" for a nil node).
func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	return n.XMLName.Local
}

// Namespace returns the namespace URI of the element.
func (n *Node) Namespace() string {
	if n == nil {
		return ""
	}
	return n.XMLName.Space
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}

// Find follows the first matching child at each step and returns the final
// element, or nil when any step is missing.
func (n *Node) Find(elems ...string) *Node {
	cur := n
	for _, e := range elems {
		cur = cur.Child(e)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// All returns every element reachable through elems, fanning out over
// repeated elements at each step. All() on a node returns the node itself.
func (n *Node) All(elems ...string) []*Node {
	if n == nil {
		return nil
	}
	level := []*Node{n}
	for _, e := range elems {
		var next []*Node
		for _, cur := range level {
			next = append(next, cur.ChildrenNamed(e)...)
		}
		if len(next) == 0 {
			return nil
		}
		level = next
	}
	return level
}

// Attr returns the attribute with the given local name.
func (n *Node) Attr(name string) Value {
	if n == nil {
		return Value{}
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return Value{raw: a.Value, ok: true}
		}
	}
	return Value{}
}

// =============================================================================
// ROOT KIND
// =============================================================================

// RootKind classifies a document by its root element.
type RootKind int

const (
	RootUnknown RootKind = iota
	RootComprobante
	RootRetenciones
)

func (k RootKind) String() string {
	switch k {
	case RootComprobante:
		return "comprobante"
	case RootRetenciones:
		return "retenciones"
	default:
		return "unknown"
	}
}

// Kind classifies the node as a CFDI root.
func (n *Node) Kind() RootKind {
	switch n.Name() {
	case "Comprobante":
		return RootComprobante
	case "Retenciones":
		return RootRetenciones
	default:
		return RootUnknown
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes a whole XML document and returns its root element.
//
// PARAMETERS:
//   - data: raw file content.
//
// RETURNS:
//   - The root Node.
//   - An error if the content is empty or not well-formed XML.
func Parse(data []byte) (*Node, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var root Node
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode xml: %w", err)
	}
	return &root, nil
}

// charsetReader handles the legacy single-byte encodings some ERPs still
// declare in the XML prolog.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
