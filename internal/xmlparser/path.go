package xmlparser

import (
	"math"
	"strconv"
	"strings"
)

// Path addresses a value inside a Node: a chain of child element names and,
// optionally, a final attribute. Without an attribute the element text is read.
//
//	xmlparser.At("Complemento", "TimbreFiscalDigital").Attr("UUID")
type Path struct {
	elems []string
	attr  string
}

// At starts a path at the given element chain, relative to the node it is
// evaluated against.
func At(elems ...string) Path {
	return Path{elems: append([]string(nil), elems...)}
}

// Attr returns a copy of p ending at the named attribute.
func (p Path) Attr(name string) Path {
	return Path{elems: p.elems, attr: name}
}

// String renders the path as "A/B@attr".
func (p Path) String() string {
	s := strings.Join(p.elems, "/")
	if p.attr != "" {
		s += "@" + p.attr
	}
	return s
}

// Get evaluates p against n.
func (n *Node) Get(p Path) Value {
	target := n.Find(p.elems...)
	if target == nil {
		return Value{}
	}
	if p.attr != "" {
		return target.Attr(p.attr)
	}
	return Value{raw: strings.TrimSpace(target.Text), ok: true}
}

// Value is the result of a lookup: the raw text plus whether it was present.
type Value struct {
	raw string
	ok  bool
}

// Present reports whether the addressed field exists in the document.
func (v Value) Present() bool { return v.ok }

// String returns the raw text, "" when absent.
func (v Value) String() string { return v.raw }

// NonEmpty reports whether the field is present and not blank.
func (v Value) NonEmpty() bool { return v.ok && strings.TrimSpace(v.raw) != "" }

// Or returns the raw text, or def when absent or blank.
func (v Value) Or(def string) string {
	if !v.NonEmpty() {
		return def
	}
	return v.raw
}

// FloatOK parses the value as a finite number.
func (v Value) FloatOK() (float64, bool) {
	if !v.ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Float parses the value as a number; absent or invalid values yield 0.
func (v Value) Float() float64 {
	f, _ := v.FloatOK()
	return f
}
