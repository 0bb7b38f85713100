// Package mindmap turns flat self-referencing rows into the node tree the
// MindElixir client renders, and decorates nodes from configured annotations.
package mindmap

// RootID is the id of a synthesized root node. Clients send it back as a
// parent id meaning "no parent".
const RootID = "root"

// Direction is the side root children are laid out on.
type Direction int

const (
	DirectionLeft  Direction = 0
	DirectionRight Direction = 1
	DirectionSide  Direction = 2
)

// Style is the inline style of a node.
type Style struct {
	Background string `json:"background,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Node is one mind-map element in MindElixir's node data shape.
type Node struct {
	ID          string   `json:"id"`
	Topic       string   `json:"topic"`
	Children    []*Node  `json:"children"`
	Style       *Style   `json:"style,omitempty"`
	Icons       []string `json:"icons,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	HyperLink   string   `json:"hyperLink,omitempty"`
	Description string   `json:"description,omitempty"`
	// Root marks the top node for the client layout. It is set on a real
	// root row too, so it says nothing about whether the node has a key.
	Root bool `json:"root,omitempty"`

	// PK is the primary key of the row the node was built from; nil for
	// synthesized nodes.
	PK any `json:"-"`
}

// Walk visits n and its descendants depth first, stopping when fn returns
// false.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the node with the given id, or nil.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.ID == id {
			found = c
			return false
		}
		return found == nil
	})
	return found
}

// Count returns the number of nodes in the subtree.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

func (n *Node) addIcon(icon string) {
	for _, existing := range n.Icons {
		if existing == icon {
			return
		}
	}
	n.Icons = append(n.Icons, icon)
}
