// Package document models the content handed to the annotation core by the
// editing layer: ProseMirror-shaped content trees, sections, and published
// versions.
//
// Positions follow the editor's addressing scheme, counted in runes: a text
// node spans one position per character, a leaf node spans one position, and
// every other node spans its content plus an opening and a closing token.
package document

import (
	"strings"
	"unicode/utf8"
)

// Node is one node of a content tree.
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []*Node        `json:"content,omitempty"`
}

// Mark is inline formatting attached to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// leafTypes are node types that never hold content.
var leafTypes = map[string]bool{
	"image":           true,
	"video":           true,
	"file":            true,
	"iframe":          true,
	"latex":           true,
	"equation":        true,
	"footnote":        true,
	"citation":        true,
	"hard_break":      true,
	"hardBreak":       true,
	"horizontal_rule": true,
	"horizontalRule":  true,
}

// NewText returns a text node.
func NewText(text string) *Node {
	return &Node{Type: "text", Text: text}
}

// NewNode returns a node of the given type wrapping children.
func NewNode(nodeType string, children ...*Node) *Node {
	return &Node{Type: nodeType, Content: children}
}

// FromParagraphs builds a doc node with one paragraph per argument.
// Empty strings produce empty paragraphs.
func FromParagraphs(paragraphs ...string) *Node {
	doc := NewNode("doc")

	for _, p := range paragraphs {
		para := NewNode("paragraph")
		if p != "" {
			para.Content = []*Node{NewText(p)}
		}

		doc.Content = append(doc.Content, para)
	}

	return doc
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool {
	return n != nil && n.Type == "text"
}

// IsLeaf reports whether n is an atomic non-text node.
func (n *Node) IsLeaf() bool {
	return n != nil && !n.IsText() && len(n.Content) == 0 && leafTypes[n.Type]
}

// ContentSize returns the number of positions inside n.
func (n *Node) ContentSize() int {
	if n == nil {
		return 0
	}

	size := 0
	for _, child := range n.Content {
		size += child.NodeSize()
	}

	return size
}

// NodeSize returns the number of positions n occupies in its parent. For a
// document root this is the content size plus the two boundary tokens that
// no extraction may reach into.
func (n *Node) NodeSize() int {
	switch {
	case n == nil:
		return 0
	case n.IsText():
		return len([]rune(n.Text))
	case n.IsLeaf():
		return 1
	default:
		return n.ContentSize() + 2
	}
}

// TextBetween returns the text of all text nodes between the content
// positions from and to. Out-of-range positions are clamped and block
// boundaries contribute no separator.
func (n *Node) TextBetween(from, to int) string {
	if n == nil {
		return ""
	}

	size := n.ContentSize()
	from = min(max(from, 0), size)
	to = min(max(to, 0), size)

	if from >= to {
		return ""
	}

	var b strings.Builder

	n.collectText(&b, from, to)

	return b.String()
}

func (n *Node) collectText(b *strings.Builder, from, to int) {
	pos := 0

	for _, child := range n.Content {
		if pos >= to {
			return
		}

		end := pos + child.NodeSize()

		if end > from {
			switch {
			case child.IsText():
				runes := []rune(child.Text)
				b.WriteString(string(runes[max(from-pos, 0):min(to-pos, len(runes))]))
			case !child.IsLeaf():
				child.collectText(b, from-pos-1, to-pos-1)
			}
		}

		pos = end
	}
}

// PlainText returns all text in n with no block separators.
func (n *Node) PlainText() string {
	return n.TextBetween(0, n.ContentSize())
}

// TextPositions returns, for each character of PlainText, the content
// position it occupies.
func (n *Node) TextPositions() []int {
	if n == nil {
		return nil
	}

	positions := make([]int, 0, n.ContentSize())
	n.collectPositions(&positions, 0)

	return positions
}

func (n *Node) collectPositions(positions *[]int, base int) {
	pos := base

	for _, child := range n.Content {
		switch {
		case child.IsText():
			for i := range utf8.RuneCountInString(child.Text) {
				*positions = append(*positions, pos+i)
			}
		case !child.IsLeaf():
			child.collectPositions(positions, pos+1)
		}

		pos += child.NodeSize()
	}
}
