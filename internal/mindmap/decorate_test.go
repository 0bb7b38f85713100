package mindmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/internal/formula"
	"mindmap-backend/internal/host"
)

func evaluator(t *testing.T) *formula.Evaluator {
	t.Helper()
	e, err := formula.NewEvaluator(formula.Context{})
	require.NoError(t, err)
	return e
}

func TestAggregationKey(t *testing.T) {
	assert.Equal(t, "agg_comments_task_count_id", AggregationKey("comments.task", host.StatCount, "id", ""))
	assert.Equal(t, "agg_comments_task_array_agg_body", AggregationKey("comments.task", host.StatArrayAgg, "body", ""))

	filtered := AggregationKey("comments.task", host.StatCount, "id", "done")
	assert.Regexp(t, `^agg_comments_task_count_id_[0-9a-f]{8}$`, filtered)
	assert.Equal(t, filtered, AggregationKey("comments.task", host.StatCount, "id", "done"))
	assert.NotEqual(t, filtered, AggregationKey("comments.task", host.StatCount, "id", "!done"))

	a := AggregationAnnotation{Table: "comments", RefField: "task", Field: "id", Stat: host.StatCount}
	assert.Equal(t, "comments.task", a.Relation())
	assert.Equal(t, a.Key(), a.Aggregation().As)

	table, field, err := ParseRelation("comments.task")
	require.NoError(t, err)
	assert.Equal(t, "comments", table)
	assert.Equal(t, "task", field)
	_, _, err = ParseRelation("comments")
	assert.Error(t, err)
}

func TestDecorator_Node(t *testing.T) {
	agg := AggregationAnnotation{Table: "comments", RefField: "task", Field: "body", Stat: host.StatArrayAgg, Separator: " | "}
	cfg := DecoratorConfig{
		PKField:          "id",
		TitleField:       "name",
		DescriptionField: "notes",
		ColorField:       "project.color",
		TextColorField:   "ink",
		EditView:         "Edit task",
		Annotations: []Annotation{
			IconAnnotation{Icon: "🔥", ShowIf: "priority > 2"},
			IconAnnotation{Icon: "🔥"},
			TextBadgeAnnotation{Text: "new"},
			FormulaBadgeAnnotation{Formula: `"p" + string(priority)`},
			FormulaBadgeAnnotation{Formula: `null`},
			LabelStyleAnnotation{Style: "color: red", ShowIf: "user.role_id <= 4"},
			TextBadgeAnnotation{Text: "hidden", ShowIf: "false"},
			agg,
		},
	}
	r := host.Row{
		"id": int64(7), "name": "Ship", "notes": "by friday", "priority": int64(3),
		ColorColumn: "#ff0000", "ink": "#fff",
		agg.Key(): []any{"a", "b"},
	}

	d := NewDecorator(cfg, evaluator(t), &host.User{ID: "u", RoleID: 1}, false)
	n, err := d.Node(r)
	require.NoError(t, err)

	assert.Equal(t, "7", n.ID)
	assert.Equal(t, "Ship", n.Topic)
	assert.Equal(t, "by friday", n.Description)
	assert.Equal(t, &Style{Background: "#ff0000", Color: "#fff"}, n.Style)
	assert.Equal(t, []string{"🔥"}, n.Icons)
	assert.Equal(t, []string{"new", "p3", "a | b"}, n.Tags)
	assert.Equal(t, "/view/Edit%20task?id=7", n.HyperLink)
	assert.Equal(t, map[string]string{"7": "color: red"}, d.LabelStyles())

	body, err := json.Marshal(n)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "PK")
	assert.Contains(t, string(body), `"hyperLink":"/view/Edit%20task?id=7"`)
}

func TestDecorator_LeafExpansion(t *testing.T) {
	agg := AggregationAnnotation{Table: "comments", RefField: "task", Field: "body", Stat: host.StatArrayAgg, LeafExpansion: true}
	cfg := DecoratorConfig{PKField: "id", TitleField: "name", Annotations: []Annotation{TextBadgeAnnotation{Text: "x"}, agg}}
	r := host.Row{"id": int64(4), "name": "T", agg.Key(): []any{"first", "second"}}

	n, err := NewDecorator(cfg, evaluator(t), nil, true).Node(r)
	require.NoError(t, err)
	require.Len(t, n.Children, 2)
	assert.Equal(t, "4-agg1-0", n.Children[0].ID)
	assert.Equal(t, "second", n.Children[1].Topic)
	assert.Equal(t, []string{"x"}, n.Tags)

	n, err = NewDecorator(cfg, evaluator(t), nil, false).Node(r)
	require.NoError(t, err)
	assert.Empty(t, n.Children)
	assert.Equal(t, []string{"x", "first, second"}, n.Tags)
}

func TestDecorator_TitleFormulaAndNoStyle(t *testing.T) {
	cfg := DecoratorConfig{
		PKField:      "id",
		TitleField:   FormulaOption,
		TitleFormula: `name + " (" + string(id) + ")"`,
		ColorField:   "color",
	}
	n, err := NewDecorator(cfg, evaluator(t), nil, false).Node(host.Row{"id": int64(2), "name": "Plan", "color": nil})
	require.NoError(t, err)
	assert.Equal(t, "Plan (2)", n.Topic)
	assert.Nil(t, n.Style)
	assert.Empty(t, n.HyperLink)
}

func TestDecorator_GuardErrorsPropagate(t *testing.T) {
	cfg := DecoratorConfig{PKField: "id", TitleField: "name", Annotations: []Annotation{IconAnnotation{Icon: "x", ShowIf: "nope +"}}}
	_, err := NewDecorator(cfg, evaluator(t), nil, false).Node(host.Row{"id": int64(1), "name": "a"})
	assert.Error(t, err)
}
