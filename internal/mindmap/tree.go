package mindmap

import (
	"errors"
	"fmt"
	"strings"

	"mindmap-backend/internal/host"
)

// ErrEmptyTree is returned when there are no rows to build from.
var ErrEmptyTree = errors.New("no rows to build a tree from")

// CycleError reports rows whose parent references loop back on themselves
// and so can never be reached from a root.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("parent references form a cycle through rows %s", strings.Join(e.IDs, ", "))
}

// NodeFunc maps a row to its node. Children it sets are kept after the
// row's own children.
type NodeFunc func(row host.Row) (*Node, error)

// TreeOptions configure BuildTree.
type TreeOptions struct {
	PKField     string
	ParentField string
	// RootTopic labels the synthesized root used when several rows have no
	// parent.
	RootTopic string
	// VirtualRoot, when set, becomes the root and adopts every parentless
	// row.
	VirtualRoot *Node
	NodeFor     NodeFunc
}

// Tree is the result of BuildTree.
type Tree struct {
	Root *Node
	// Roots are the nodes of the parentless rows, in row order.
	Roots []*Node
}

// BuildTree assembles rows into a tree. A row is a root iff its parent
// reference is empty; a node's children are the rows referencing its
// primary key, in row order. Several roots are gathered under a synthesized
// "root" node. When no row is parentless, rows whose parent lies outside
// the row set are promoted to roots. Traversal is cycle safe: unreachable
// rows whose parent chain loops produce a *CycleError.
func BuildTree(rows []host.Row, opts TreeOptions) (*Tree, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTree
	}
	nodeFor := opts.NodeFor
	if nodeFor == nil {
		nodeFor = func(row host.Row) (*Node, error) {
			return &Node{ID: host.KeyString(row[opts.PKField]), PK: row[opts.PKField]}, nil
		}
	}

	byID := make(map[string]host.Row, len(rows))
	children := make(map[string][]host.Row, len(rows))
	var roots []host.Row
	for _, r := range rows {
		id := host.KeyString(r[opts.PKField])
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = r
		if p := r[opts.ParentField]; host.IsNull(p) {
			roots = append(roots, r)
		} else {
			key := host.KeyString(p)
			children[key] = append(children[key], r)
		}
	}

	if len(roots) == 0 {
		for _, r := range rows {
			if _, ok := byID[host.KeyString(r[opts.ParentField])]; !ok {
				roots = append(roots, r)
			}
		}
	}

	b := &builder{children: children, visited: make(map[string]bool, len(byID)), nodeFor: nodeFor, pk: opts.PKField}
	tree := &Tree{}
	for _, r := range roots {
		n, err := b.build(r)
		if err != nil {
			return nil, err
		}
		if n != nil {
			tree.Roots = append(tree.Roots, n)
		}
	}

	if len(b.visited) < len(byID) {
		if ids := findCycle(byID, b.visited, opts.ParentField); len(ids) > 0 {
			return nil, &CycleError{IDs: ids}
		}
	}

	switch {
	case opts.VirtualRoot != nil:
		root := opts.VirtualRoot
		root.Children = append(append([]*Node{}, tree.Roots...), root.Children...)
		tree.Root = root
	case len(tree.Roots) == 1:
		tree.Root = tree.Roots[0]
	default:
		tree.Root = &Node{ID: RootID, Topic: opts.RootTopic, Children: append([]*Node{}, tree.Roots...)}
	}
	tree.Root.Root = true
	return tree, nil
}

type builder struct {
	children map[string][]host.Row
	visited  map[string]bool
	nodeFor  NodeFunc
	pk       string
}

func (b *builder) build(row host.Row) (*Node, error) {
	id := host.KeyString(row[b.pk])
	if b.visited[id] {
		return nil, nil
	}
	b.visited[id] = true

	n, err := b.nodeFor(row)
	if err != nil {
		return nil, err
	}
	extra := n.Children
	n.Children = make([]*Node, 0, len(b.children[id])+len(extra))
	for _, c := range b.children[id] {
		cn, err := b.build(c)
		if err != nil {
			return nil, err
		}
		if cn != nil {
			n.Children = append(n.Children, cn)
		}
	}
	n.Children = append(n.Children, extra...)
	return n, nil
}

// findCycle follows the parent chain of each unvisited row and returns the
// ids on the first loop found, in chain order.
func findCycle(byID map[string]host.Row, visited map[string]bool, parentField string) []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		if !visited[id] {
			ids = append(ids, id)
		}
	}
	sortKeys(ids)

	for _, start := range ids {
		pos := map[string]int{}
		var chain []string
		id := start
		for {
			if i, seen := pos[id]; seen {
				return chain[i:]
			}
			row, ok := byID[id]
			if !ok || visited[id] {
				break
			}
			pos[id] = len(chain)
			chain = append(chain, id)
			p := row[parentField]
			if host.IsNull(p) {
				break
			}
			id = host.KeyString(p)
		}
	}
	return nil
}
