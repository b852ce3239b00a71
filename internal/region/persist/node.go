/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package persist round-trips a Region's decoration (envelope, fades,
// inverse fades) to and from the tree-structured document described by
// spec §6: a root element carrying the "channels" and "scale-gain"
// attributes, with Envelope/FadeIn/FadeOut/InverseFadeIn/InverseFadeOut
// children. The heavyweight document lives in a single text/blob column
// in internal/region/store; this package only knows the tree shape, not
// how it is stored.
package persist

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// Node is a minimal XML element tree, mirroring the original
// implementation's generic XMLNode (name, string-valued properties,
// ordered children) rather than a Go struct tag schema — the document's
// shape varies enough between fade children (default vs. explicit
// breakpoints) and legacy/modern names that a fixed struct layout would
// fight the format more than it would describe it.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
}

// NewNode returns an empty node named name.
func NewNode(name string) *Node {
	return &Node{Name: name, Attrs: make(map[string]string)}
}

// SetAttr sets a string attribute.
func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// Attr returns an attribute value and whether it was present.
func (n *Node) Attr(key string) (string, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// AddChild appends a child node and returns it.
func (n *Node) AddChild(c *Node) *Node {
	n.Children = append(n.Children, c)
	return c
}

// Child returns the first child named name, trying each of names in
// order, or nil if none match. Used to accept both a historical and a
// modern element name for the same concept.
func (n *Node) Child(names ...string) *Node {
	for _, want := range names {
		for _, c := range n.Children {
			if c.Name == want {
				return c
			}
		}
	}
	return nil
}

// Encode serialises the node tree as an XML document.
func Encode(root *Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := writeNode(&buf, root, 0); err != nil {
		return nil, fmt.Errorf("persist: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func writeNode(w io.Writer, n *Node, depth int) error {
	indent := bytes.Repeat([]byte("  "), depth)
	if _, err := w.Write(indent); err != nil {
		return err
	}
	fmt.Fprintf(w, "<%s", n.Name)

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=\"", k)
		if err := xml.EscapeText(w, []byte(n.Attrs[k])); err != nil {
			return err
		}
		fmt.Fprint(w, "\"")
	}

	if len(n.Children) == 0 {
		fmt.Fprint(w, "/>\n")
		return nil
	}
	fmt.Fprint(w, ">\n")
	for _, c := range n.Children {
		if err := writeNode(w, c, depth+1); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%s</%s>\n", indent, n.Name)
	return nil
}

// Decode parses an XML document into a Node tree.
func Decode(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("persist: decode: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeElement(dec, start)
		}
	}
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (*Node, error) {
	n := NewNode(start.Name.Local)
	for _, attr := range start.Attr {
		n.SetAttr(attr.Name.Local, attr.Value)
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("persist: decode %s: %w", n.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case xml.EndElement:
			return n, nil
		}
	}
}
