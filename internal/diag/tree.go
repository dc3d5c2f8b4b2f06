// Package diag renders indented diagnostic trees for troubleshooting dumps.
//
// Nodes live in one slice owned by the Tree and refer to each other by index,
// so a child can be added before its parent is fully described.
package diag

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const indent = "  "

type node struct {
	label    string
	attrs    []attr
	children []int
}

type attr struct {
	key   string
	value string
}

type Tree struct {
	nodes []node
}

func New(label string) *Tree {
	return &Tree{nodes: []node{{label: label}}}
}

// Node is a handle to one entry of a Tree.
type Node struct {
	tree *Tree
	idx  int
}

func (t *Tree) Root() Node { return Node{tree: t, idx: 0} }

// Child appends a labelled child and returns its handle.
func (n Node) Child(label string) Node {
	t := n.tree
	t.nodes = append(t.nodes, node{label: label})
	idx := len(t.nodes) - 1
	t.nodes[n.idx].children = append(t.nodes[n.idx].children, idx)
	return Node{tree: t, idx: idx}
}

// Attr records a key/value line under the node. Values are formatted with %v.
func (n Node) Attr(key string, value any) Node {
	t := n.tree
	t.nodes[n.idx].attrs = append(t.nodes[n.idx].attrs, attr{key: key, value: fmt.Sprint(value)})
	return n
}

func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}
	t.write(cw, 0, 0)
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

func (t *Tree) write(w *countingWriter, idx, depth int) {
	n := t.nodes[idx]
	prefix := strings.Repeat(indent, depth)
	w.printf("%s%s\n", prefix, n.label)
	for _, a := range n.attrs {
		w.printf("%s%s%s: %s\n", prefix, indent, a.key, a.value)
	}
	for _, c := range n.children {
		t.write(w, c, depth+1)
	}
}

func (t *Tree) String() string {
	var sb strings.Builder
	t.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	c.n += int64(n)
	c.err = err
}
