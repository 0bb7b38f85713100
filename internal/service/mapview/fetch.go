package mapview

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/internal/host"
	"mindmap-backend/internal/mindmap"
	"mindmap-backend/internal/view"
	appErrors "mindmap-backend/pkg/errors"
)

// MindData is the client payload of one render.
type MindData struct {
	NodeData    *mindmap.Node     `json:"nodeData"`
	LinkData    map[string]any    `json:"linkData"`
	LabelStyles map[string]string `json:"labelStyles"`
	// Editable reports whether the caller may run mutations.
	Editable bool `json:"editable"`
	// RootValue echoes the root relation state so new nodes can be stamped
	// with it.
	RootValue string `json:"rootValue,omitempty"`
}

// query assembles the row query for a view: state filters, color joins and
// one aggregation per aggregation annotation.
func (s *service) query(v *view.Configuration, table *host.Table, where host.Where, annotations []mindmap.Annotation) (host.Query, error) {
	q := host.Query{Where: where, OrderBy: v.OrderField, OrderDesc: v.OrderDesc}
	for _, c := range []struct{ ref, as string }{
		{v.ColorField, mindmap.ColorColumn},
		{v.TextColorField, mindmap.TextColorColumn},
	} {
		if c.ref == "" {
			continue
		}
		j, err := view.ResolveJoin(s.catalog, table, c.ref, c.as)
		if err != nil {
			return q, err
		}
		if j != nil {
			q.Joins = append(q.Joins, *j)
		}
	}
	for _, a := range annotations {
		if agg, ok := a.(mindmap.AggregationAnnotation); ok {
			q.Aggregations = append(q.Aggregations, agg.Aggregation())
		}
	}
	return q, nil
}

// fetchRows returns the rows of the view's table matching the state.
func (s *service) fetchRows(ctx context.Context, v *view.Configuration, table *host.Table, state map[string]any, annotations []mindmap.Annotation) ([]host.Row, error) {
	q, err := s.query(v, table, host.StateToWhere(table, state), annotations)
	if err != nil {
		return nil, appErrors.NewInternalError("view " + v.Name + " is misconfigured").WithCause(err)
	}
	rows, err := s.store.GetJoinedRows(ctx, table, q)
	if err != nil {
		return nil, storageError("fetch rows", err)
	}
	return rows, nil
}

// virtualRoot builds the root node for the row selected by the root
// relation field, or returns nil when the state does not select one.
func (s *service) virtualRoot(ctx context.Context, v *view.Configuration, table *host.Table, state map[string]any) (*mindmap.Node, error) {
	if v.RootRelationField == "" {
		return nil, nil
	}
	val, ok := state[v.RootRelationField]
	if !ok || host.IsNull(val) {
		return nil, nil
	}
	f, err := table.Field(v.RootRelationField)
	if err != nil {
		return nil, err
	}
	related, err := s.catalog.FindTable(f.RefTable)
	if err != nil {
		return nil, appErrors.NewInternalError("view " + v.Name + " is misconfigured").WithCause(err)
	}
	row, err := s.store.GetRow(ctx, related, host.Where{related.PKName(): val})
	if err != nil {
		return nil, storageError("fetch root row", err)
	}
	return &mindmap.Node{
		ID:       mindmap.RootID,
		Topic:    host.Display(row[related.DisplayField()]),
		Children: []*mindmap.Node{},
		PK:       row[related.PKName()],
	}, nil
}

func expandRequested(state map[string]string) bool {
	switch strings.ToLower(state[view.ExpandStateKey]) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}

func (s *service) MindData(ctx context.Context, viewName string, rawState map[string]string, user *host.User) (data *MindData, err error) {
	ctx, span := s.startSpan(ctx, "MindData", viewName)
	defer func() { endSpan(span, err) }()
	start := time.Now()

	v, table, err := s.loadView(viewName)
	if err != nil {
		return nil, err
	}
	state, err := host.ReadState(rawState, table)
	if err != nil {
		return nil, appErrors.NewValidationError(err.Error()).WithCause(err)
	}
	annotations, err := v.AnnotationList()
	if err != nil {
		return nil, appErrors.NewInternalError("view " + v.Name + " is misconfigured").WithCause(err)
	}

	rows, err := s.fetchRows(ctx, v, table, state, annotations)
	if err != nil {
		return nil, err
	}
	vroot, err := s.virtualRoot(ctx, v, table, state)
	if err != nil {
		return nil, err
	}

	decorator := mindmap.NewDecorator(mindmap.DecoratorConfig{
		PKField:            table.PKName(),
		TitleField:         v.TitleField,
		TitleFormula:       v.TitleFormula,
		DescriptionField:   v.DescriptionField,
		DescriptionFormula: v.DescriptionFormula,
		ColorField:         v.ColorField,
		TextColorField:     v.TextColorField,
		EditView:           v.EditView,
		Annotations:        annotations,
	}, s.eval, user, expandRequested(rawState))

	tree, err := mindmap.BuildTree(rows, mindmap.TreeOptions{
		PKField:     table.PKName(),
		ParentField: v.ParentField,
		RootTopic:   v.RootTopic(),
		VirtualRoot: vroot,
		NodeFor:     decorator.Node,
	})
	var root *mindmap.Node
	var cycle *mindmap.CycleError
	switch {
	case err == nil:
		root = tree.Root
	case errors.Is(err, mindmap.ErrEmptyTree):
		root = vroot
		if root == nil {
			root = &mindmap.Node{ID: mindmap.RootID, Topic: v.RootTopic(), Children: []*mindmap.Node{}}
		}
		root.Root = true
	case errors.As(err, &cycle):
		s.logger.Error("Parent references form a cycle",
			zap.String("view", v.Name),
			zap.Strings("rows", cycle.IDs),
		)
		return nil, appErrors.NewInternalError(cycle.Error()).WithCause(err)
	default:
		return nil, appErrors.NewInternalError("building tree failed").WithCause(err)
	}

	data = &MindData{
		NodeData:    root,
		LinkData:    map[string]any{},
		LabelStyles: decorator.LabelStyles(),
		Editable:    Authorized(user, table),
	}
	if v.RootRelationField != "" {
		data.RootValue = rawState[v.RootRelationField]
	}

	nodes := root.Count()
	s.metrics.RecordRender(v.Name, nodes, time.Since(start))
	s.logger.Debug("Mind map built",
		zap.String("view", v.Name),
		zap.Int("rows", len(rows)),
		zap.Int("nodes", nodes),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}
