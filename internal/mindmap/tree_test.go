package mindmap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/internal/host"
)

func row(id, parent any, name string) host.Row {
	return host.Row{"id": id, "parent": parent, "name": name}
}

func topicNode(r host.Row) (*Node, error) {
	return &Node{ID: host.KeyString(r["id"]), Topic: r["name"].(string), PK: r["id"]}, nil
}

func opts() TreeOptions {
	return TreeOptions{PKField: "id", ParentField: "parent", RootTopic: "Tasks", NodeFor: topicNode}
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestBuildTree_SingleRoot(t *testing.T) {
	rows := []host.Row{
		row(int64(1), nil, "Root"),
		row(int64(2), int64(1), "A"),
		row(int64(3), int64(1), "B"),
		row(int64(4), "2", "A1"),
	}
	tree, err := BuildTree(rows, opts())
	require.NoError(t, err)

	assert.Equal(t, "1", tree.Root.ID)
	assert.True(t, tree.Root.Root)
	assert.Equal(t, []string{"2", "3"}, ids(tree.Root.Children))
	assert.Equal(t, []string{"4"}, ids(tree.Root.Find("2").Children), "string and integer keys compare by value")
	assert.Equal(t, 4, tree.Root.Count())
	assert.NotNil(t, tree.Root.Find("3").Children)
}

// Every node's children are exactly the rows referencing it, and reachable
// ids are unique.
func TestBuildTree_ChildrenMatchParentReferences(t *testing.T) {
	var rows []host.Row
	rows = append(rows, row(int64(1), nil, "r"))
	for i := int64(2); i <= 40; i++ {
		rows = append(rows, row(i, i/2, fmt.Sprint(i)))
	}
	tree, err := BuildTree(rows, opts())
	require.NoError(t, err)

	seen := map[string]bool{}
	tree.Root.Walk(func(n *Node) bool {
		assert.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true

		var want []string
		for _, r := range rows {
			if host.SameKey(r["parent"], n.PK) {
				want = append(want, host.KeyString(r["id"]))
			}
		}
		assert.ElementsMatch(t, want, ids(n.Children), "children of %s", n.ID)
		return true
	})
	assert.Len(t, seen, len(rows))
}

func TestBuildTree_MultipleRootsGetSyntheticRoot(t *testing.T) {
	rows := []host.Row{
		row(int64(5), nil, "E"),
		row(int64(2), nil, "B"),
		row(int64(3), int64(2), "C"),
	}
	tree, err := BuildTree(rows, opts())
	require.NoError(t, err)

	assert.Equal(t, RootID, tree.Root.ID)
	assert.Equal(t, "Tasks", tree.Root.Topic)
	assert.Nil(t, tree.Root.PK)
	assert.Equal(t, []string{"5", "2"}, ids(tree.Root.Children), "row order is kept")
	assert.Len(t, tree.Roots, 2)
}

func TestBuildTree_VirtualRoot(t *testing.T) {
	rows := []host.Row{
		row(int64(1), nil, "A"),
		row(int64(2), nil, "B"),
		row(int64(3), int64(1), "A1"),
	}
	o := opts()
	o.VirtualRoot = &Node{ID: RootID, Topic: "Project X"}
	tree, err := BuildTree(rows, o)
	require.NoError(t, err)

	assert.Equal(t, "Project X", tree.Root.Topic)
	assert.Equal(t, []string{"1", "2"}, ids(tree.Root.Children))
}

func TestBuildTree_Cycle(t *testing.T) {
	rows := []host.Row{
		row(int64(1), nil, "Root"),
		row(int64(2), int64(3), "A"),
		row(int64(3), int64(2), "B"),
		row(int64(4), int64(2), "C"),
	}
	_, err := BuildTree(rows, opts())
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.ElementsMatch(t, []string{"2", "3"}, cycle.IDs)
	assert.Contains(t, err.Error(), "cycle")

	_, err = BuildTree([]host.Row{row(int64(1), int64(1), "self")}, opts())
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"1"}, cycle.IDs)
}

func TestBuildTree_OrphansAndDuplicates(t *testing.T) {
	rows := []host.Row{
		row(int64(1), nil, "Root"),
		row(int64(2), int64(99), "orphan"),
		row(int64(1), nil, "dup"),
	}
	tree, err := BuildTree(rows, opts())
	require.NoError(t, err)
	assert.Equal(t, "Root", tree.Root.Topic)
	assert.Equal(t, 1, tree.Root.Count())

	filtered := []host.Row{
		row(int64(7), int64(3), "x"),
		row(int64(8), int64(3), "y"),
		row(int64(9), int64(7), "z"),
	}
	tree, err = BuildTree(filtered, opts())
	require.NoError(t, err)
	assert.Equal(t, RootID, tree.Root.ID)
	assert.Equal(t, []string{"7", "8"}, ids(tree.Root.Children))
	assert.Equal(t, 4, tree.Root.Count())
}

func TestBuildTree_EmptyAndDefaults(t *testing.T) {
	_, err := BuildTree(nil, opts())
	assert.ErrorIs(t, err, ErrEmptyTree)

	tree, err := BuildTree([]host.Row{{"id": "a", "parent": ""}}, TreeOptions{PKField: "id", ParentField: "parent"})
	require.NoError(t, err)
	assert.Equal(t, "a", tree.Root.ID)
}

func TestBuildTree_ExtraChildrenFollowRowChildren(t *testing.T) {
	rows := []host.Row{row(int64(1), nil, "Root"), row(int64(2), int64(1), "A")}
	o := opts()
	o.NodeFor = func(r host.Row) (*Node, error) {
		n, _ := topicNode(r)
		if n.ID == "1" {
			n.Children = []*Node{{ID: "1-agg0-0", Topic: "leaf"}}
		}
		return n, nil
	}
	tree, err := BuildTree(rows, o)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1-agg0-0"}, ids(tree.Root.Children))
}
