package mapview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mindmap-backend/internal/host"
	"mindmap-backend/internal/mindmap"
	"mindmap-backend/internal/view"
	appErrors "mindmap-backend/pkg/errors"
)

// CreateInput is a create-node request.
type CreateInput struct {
	Topic    string
	ParentID string
	// RootValue stamps the root relation field of the new row unless the
	// row formula already set it.
	RootValue string
}

// Created describes an inserted node.
type Created struct {
	ID        any
	Topic     string
	HyperLink string
}

const (
	outcomeOK     = "ok"
	outcomeNoop   = "noop"
	outcomeDenied = "denied"
	outcomeError  = "error"
)

// authorize loads the view and applies the write predicate before any
// storage call.
func (s *service) authorize(viewName string, user *host.User) (*view.Configuration, *host.Table, error) {
	v, table, err := s.loadView(viewName)
	if err != nil {
		return nil, nil, err
	}
	if !Authorized(user, table) {
		return nil, nil, ErrNotAuthorized
	}
	return v, table, nil
}

func (s *service) record(viewName, op string, err error, noop bool) {
	outcome := outcomeOK
	switch {
	case err != nil && appErrors.IsForbidden(err):
		outcome = outcomeDenied
	case err != nil:
		outcome = outcomeError
	case noop:
		outcome = outcomeNoop
	}
	s.metrics.RecordMutation(viewName, op, outcome)
}

func coerce(table *host.Table, fieldName, raw string) (any, error) {
	f, err := table.Field(fieldName)
	if err != nil {
		return nil, appErrors.NewInternalError(err.Error()).WithCause(err)
	}
	v, err := f.Coerce(raw)
	if err != nil {
		return nil, appErrors.NewValidationError(err.Error()).WithCause(err)
	}
	return v, nil
}

func (s *service) Rename(ctx context.Context, viewName, id, topic string, user *host.User) (err error) {
	ctx, span := s.startSpan(ctx, "Rename", viewName)
	noop := false
	defer func() {
		s.record(viewName, "rename", err, noop)
		endSpan(span, err)
	}()

	v, table, err := s.authorize(viewName, user)
	if err != nil {
		return err
	}
	if v.TitleIsFormula() {
		return ErrTitleIsFormula
	}
	if topic == "" {
		noop = true
		return nil
	}
	pk, err := coerce(table, table.PKName(), id)
	if err != nil {
		return err
	}
	if pk == nil {
		return appErrors.NewValidationError("id is required")
	}

	if err := s.store.UpdateRow(ctx, table, host.Row{v.TitleField: topic}, pk, user); err != nil {
		return storageError("update row", err)
	}
	s.logger.Info("Node renamed", zap.String("view", v.Name), zap.String("id", id))
	return nil
}

func (s *service) Move(ctx context.Context, viewName, id, parentID string, user *host.User) (err error) {
	ctx, span := s.startSpan(ctx, "Move", viewName)
	noop := false
	defer func() {
		s.record(viewName, "move", err, noop)
		endSpan(span, err)
	}()

	v, table, err := s.authorize(viewName, user)
	if err != nil {
		return err
	}
	if parentID == "" {
		noop = true
		return nil
	}
	pk, err := coerce(table, table.PKName(), id)
	if err != nil {
		return err
	}
	if pk == nil {
		return appErrors.NewValidationError("id is required")
	}

	var parent any
	if parentID != mindmap.RootID {
		if parent, err = coerce(table, v.ParentField, parentID); err != nil {
			return err
		}
		if err := s.checkNotDescendant(ctx, v, table, pk, parent); err != nil {
			return err
		}
	}

	if err := s.store.UpdateRow(ctx, table, host.Row{v.ParentField: parent}, pk, user); err != nil {
		return storageError("update row", err)
	}
	s.logger.Info("Node moved",
		zap.String("view", v.Name),
		zap.String("id", id),
		zap.String("parent_id", parentID),
	)
	return nil
}

// checkNotDescendant walks up from the new parent and rejects moves that
// would make a node its own ancestor.
func (s *service) checkNotDescendant(ctx context.Context, v *view.Configuration, table *host.Table, id, parent any) error {
	pkName := table.PKName()
	seen := map[string]bool{}
	for cur := parent; !host.IsNull(cur); {
		key := host.KeyString(cur)
		if host.SameKey(cur, id) {
			return appErrors.NewValidationError("a node cannot be moved under itself or its descendants")
		}
		if seen[key] {
			return nil
		}
		seen[key] = true
		row, err := s.store.GetRow(ctx, table, host.Where{pkName: cur})
		if err != nil {
			return storageError("fetch parent row", err)
		}
		cur = row[v.ParentField]
	}
	return nil
}

func (s *service) Delete(ctx context.Context, viewName, id string, user *host.User) (err error) {
	ctx, span := s.startSpan(ctx, "Delete", viewName)
	defer func() {
		s.record(viewName, "delete", err, false)
		endSpan(span, err)
	}()

	v, table, err := s.authorize(viewName, user)
	if err != nil {
		return err
	}
	pk, err := coerce(table, table.PKName(), id)
	if err != nil {
		return err
	}
	if pk == nil {
		return appErrors.NewValidationError("id is required")
	}

	if err := s.store.DeleteRows(ctx, table, host.Where{table.PKName(): pk}, user); err != nil {
		return storageError("delete row", err)
	}
	s.logger.Info("Node deleted", zap.String("view", v.Name), zap.String("id", id))
	return nil
}

func (s *service) Create(ctx context.Context, viewName string, in CreateInput, user *host.User) (created *Created, err error) {
	ctx, span := s.startSpan(ctx, "Create", viewName)
	defer func() {
		s.record(viewName, "create", err, false)
		endSpan(span, err)
	}()

	v, table, err := s.authorize(viewName, user)
	if err != nil {
		return nil, err
	}

	var parent any
	if in.ParentID != "" && in.ParentID != mindmap.RootID {
		if parent, err = coerce(table, v.ParentField, in.ParentID); err != nil {
			return nil, err
		}
	}

	values := host.Row{}
	if v.RowFormula != "" {
		extra, err := s.rowFormulaValues(ctx, v, table, parent, user)
		if err != nil {
			return nil, err
		}
		for k, val := range extra {
			values[k] = val
		}
	}
	if !v.TitleIsFormula() {
		values[v.TitleField] = in.Topic
	}
	values[v.ParentField] = parent
	if v.RootRelationField != "" && in.RootValue != "" {
		if _, set := values[v.RootRelationField]; !set {
			rv, err := coerce(table, v.RootRelationField, in.RootValue)
			if err != nil {
				return nil, err
			}
			values[v.RootRelationField] = rv
		}
	}

	id, err := s.store.InsertRow(ctx, table, values, user)
	if err != nil {
		return nil, storageError("insert row", err)
	}

	created = &Created{ID: id, Topic: in.Topic}
	if v.EditView != "" {
		created.HyperLink = mindmap.EditLink(v.EditView, id)
	}
	s.logger.Info("Node created",
		zap.String("view", v.Name),
		zap.String("id", host.KeyString(id)),
		zap.String("parent_id", in.ParentID),
	)
	return created, nil
}

// rowFormulaValues evaluates the view's row formula with the parent row
// (or null) and the user bound. Every key must name a field of the table.
func (s *service) rowFormulaValues(ctx context.Context, v *view.Configuration, table *host.Table, parent any, user *host.User) (map[string]any, error) {
	scope := map[string]any{"parent": nil, "user": user.Scope()}
	if parent != nil {
		row, err := s.store.GetRow(ctx, table, host.Where{table.PKName(): parent})
		if err != nil {
			return nil, storageError("fetch parent row", err)
		}
		scope["parent"] = map[string]any(row)
	}

	obj, err := s.eval.EvalObject(v.RowFormula, scope)
	if err != nil {
		return nil, appErrors.NewValidationError(fmt.Sprintf("row formula: %v", err)).WithCause(err)
	}
	for k := range obj {
		if _, err := table.Field(k); err != nil {
			return nil, appErrors.NewInternalError("row formula sets " + err.Error()).WithCause(err)
		}
	}
	return obj, nil
}
