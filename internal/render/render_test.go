package render

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/internal/mindmap"
	"mindmap-backend/internal/view"
)

func testPage() Page {
	return Page{
		View: &view.Configuration{
			Name:       "Task tree",
			Table:      "tasks",
			TitleField: "name",
			Direction:  view.DirectionRight,
			LinkStyle:  view.LinkStraight,
			Height:     40,
			HeightUnit: "vh",
		},
		NodeData: &mindmap.Node{
			ID:    "1",
			Topic: "Root </script>",
			Root:  true,
			Children: []*mindmap.Node{
				{ID: "2", Topic: "Child", Children: []*mindmap.Node{}},
			},
		},
		LabelStyles: map[string]string{"2": "color: red"},
		Editable:    true,
		RootValue:   "7",
	}
}

func TestRender_Markup(t *testing.T) {
	e := NewEmitter("0.3.0")
	e.newID = func() string { return "mindmap-test" }

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, testPage()))
	out := buf.String()

	assert.Contains(t, out, `<div id="mindmap-test"></div>`)
	assert.Contains(t, out, `height: 40vh`)
	assert.Contains(t, out, `<script src="/plugins/public/mind-map@0.3.0/MindElixir.js"></script>`)
	assert.Contains(t, out, `"/view/Task%20tree"`)
	assert.Regexp(t, `direction:\s+1\s`, out)
	assert.Contains(t, out, `"mainLinkStyle":1`)
	assert.Contains(t, out, `"editable":true`)
	assert.Contains(t, out, `"allowUndo":false`)
	assert.Contains(t, out, `"topic":"Child"`)
	assert.NotContains(t, out, "Root </script>", "data is escaped inside the script")
}

func TestRender_Defaults(t *testing.T) {
	e := NewEmitter("1.0.0")
	p := testPage()
	p.View = &view.Configuration{Name: "plain", Table: "tasks"}
	p.LabelStyles = nil
	p.Editable = false

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, p))
	out := buf.String()

	assert.Contains(t, out, "height: 500px")
	assert.Regexp(t, `direction:\s+0\s`, out)
	assert.Contains(t, out, `"mainLinkStyle":2`)
	assert.Contains(t, out, `"editable":false`)
	assert.Regexp(t, regexp.MustCompile(`id="mindmap-[0-9a-f]{12}"`), out)
}

func TestRender_UniqueIDs(t *testing.T) {
	e := NewEmitter("0.3.0")
	var a, b bytes.Buffer
	require.NoError(t, e.Render(&a, testPage()))
	require.NoError(t, e.Render(&b, testPage()))

	id := regexp.MustCompile(`id="(mindmap-[0-9a-f]+)"`)
	assert.NotEqual(t, id.FindStringSubmatch(a.String())[1], id.FindStringSubmatch(b.String())[1])
}

func TestRender_RequiresData(t *testing.T) {
	e := NewEmitter("0.3.0")
	err := e.Render(&bytes.Buffer{}, Page{View: &view.Configuration{Name: "x"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "node data"))
}

func TestOptions_DoNotLeakBetweenPages(t *testing.T) {
	p := testPage()
	opts := Options(p)
	opts["draggable"] = false
	assert.Equal(t, true, baseOptions["draggable"])
	assert.Equal(t, true, Options(p)["draggable"])
}

func TestRender_ParentKeys(t *testing.T) {
	e := NewEmitter("0.3.0")

	t.Run("real root keeps its key", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, e.Render(&buf, testPage()))
		out := buf.String()

		assert.Contains(t, out, `"id":"1"`)
		assert.Contains(t, out, `"root":true`)
		// parent_id comes from the parent's id, never from its root flag.
		assert.Contains(t, out, `return node.parent ? node.parent.id : "root";`)
		assert.NotContains(t, out, "parent.root")
		assert.NotContains(t, out, "op.obj.root")
	})

	t.Run("made-up root maps to root", func(t *testing.T) {
		p := testPage()
		p.NodeData = &mindmap.Node{
			ID:    mindmap.RootID,
			Topic: "Tasks",
			Root:  true,
			Children: []*mindmap.Node{
				{ID: "1", Topic: "A", Children: []*mindmap.Node{}},
				{ID: "2", Topic: "B", Children: []*mindmap.Node{}},
			},
		}
		var buf bytes.Buffer
		require.NoError(t, e.Render(&buf, p))
		out := buf.String()

		assert.Contains(t, out, `"id":"root"`)
		assert.Equal(t, 2, strings.Count(out, `if (op.obj.id === "root") return;`), "rename and delete skip the made-up root")
	})
}
