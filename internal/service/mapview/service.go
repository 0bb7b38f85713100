// Package mapview serves mind-map views: it fetches and assembles the node
// tree for a view and applies the rename, move, delete and create node
// mutations against the row store.
package mapview

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mindmap-backend/internal/formula"
	"mindmap-backend/internal/host"
	"mindmap-backend/internal/mindmap"
	"mindmap-backend/internal/view"
	appErrors "mindmap-backend/pkg/errors"
)

var (
	// ErrNotAuthorized is returned when the acting user may not write the
	// view's table.
	ErrNotAuthorized = appErrors.NewForbiddenError("not authorized")
	// ErrUnknownView is returned for view names the registry does not hold.
	ErrUnknownView = appErrors.NewNotFoundError("view")
	// ErrTitleIsFormula is returned when renaming nodes whose title is
	// computed.
	ErrTitleIsFormula = appErrors.NewValidationError("title is a formula and cannot be renamed")
)

// Service defines the mind-map view operations.
type Service interface {
	// MindData builds the node tree of a view for the given filter state.
	MindData(ctx context.Context, viewName string, state map[string]string, user *host.User) (*MindData, error)

	// View returns the configuration of a view.
	View(ctx context.Context, viewName string) (*view.Configuration, error)

	// StateFields lists the fields that can filter a view.
	StateFields(ctx context.Context, viewName string) ([]view.StateField, error)

	// ConfigurationForm describes the configuration form of a view's table.
	ConfigurationForm(ctx context.Context, viewName string) (*view.Form, error)

	// Rename sets the title of a node. An empty topic changes nothing.
	Rename(ctx context.Context, viewName, id, topic string, user *host.User) error

	// Move reparents a node; parentID "root" detaches it. An empty parentID
	// changes nothing.
	Move(ctx context.Context, viewName, id, parentID string, user *host.User) error

	// Delete removes a node's row.
	Delete(ctx context.Context, viewName, id string, user *host.User) error

	// Create inserts a new node under parentID.
	Create(ctx context.Context, viewName string, in CreateInput, user *host.User) (*Created, error)
}

// ViewSource resolves view configurations by name.
type ViewSource interface {
	Get(name string) (*view.Configuration, error)
}

// Recorder receives service metrics.
type Recorder interface {
	RecordMutation(view, operation, outcome string)
	RecordRender(view string, nodes int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, string, string)   {}
func (nopRecorder) RecordRender(string, int, time.Duration) {}

// Evaluator is the formula evaluator the service and its decorators use.
type Evaluator interface {
	mindmap.Evaluator
	EvalObject(expr string, scope map[string]any) (map[string]any, error)
}

var _ Evaluator = (*formula.Evaluator)(nil)

type service struct {
	views   ViewSource
	catalog host.Catalog
	store   host.RowStore
	eval    Evaluator
	metrics Recorder
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewService creates the view service. metrics may be nil.
func NewService(views ViewSource, catalog host.Catalog, store host.RowStore, eval Evaluator, metrics Recorder, logger *zap.Logger) Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &service{
		views:   views,
		catalog: catalog,
		store:   store,
		eval:    eval,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer("mindmap-backend/service/mapview"),
	}
}

// Authorized is the write predicate shared by all mutations: the user's
// role is at most the table's minimum write role, or the table has
// ownership control and the row store decides per row.
func Authorized(user *host.User, table *host.Table) bool {
	return host.CanWrite(user, table)
}

func (s *service) startSpan(ctx context.Context, name, viewName string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "mapview."+name, trace.WithAttributes(attribute.String("view", viewName)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// loadView resolves a view and its table. Stale configurations fail here.
func (s *service) loadView(viewName string) (*view.Configuration, *host.Table, error) {
	v, err := s.views.Get(viewName)
	if err != nil {
		if errors.Is(err, view.ErrViewNotFound) {
			return nil, nil, ErrUnknownView.WithCause(err)
		}
		return nil, nil, err
	}
	if err := v.Check(s.catalog); err != nil {
		return nil, nil, appErrors.NewInternalError("view " + v.Name + " is misconfigured").WithCause(err)
	}
	table, err := s.catalog.FindTable(v.Table)
	if err != nil {
		return nil, nil, appErrors.NewInternalError("view " + v.Name + " is misconfigured").WithCause(err)
	}
	return v, table, nil
}

func (s *service) View(ctx context.Context, viewName string) (*view.Configuration, error) {
	v, _, err := s.loadView(viewName)
	return v, err
}

func (s *service) StateFields(ctx context.Context, viewName string) ([]view.StateField, error) {
	_, table, err := s.loadView(viewName)
	if err != nil {
		return nil, err
	}
	return view.StateFields(table), nil
}

func (s *service) ConfigurationForm(ctx context.Context, viewName string) (*view.Form, error) {
	_, table, err := s.loadView(viewName)
	if err != nil {
		return nil, err
	}
	return view.ConfigurationForm(table, s.catalog)
}

// storageError classifies a row store error.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, host.ErrRowNotFound):
		return appErrors.NewNotFoundError("row").WithCause(err)
	case errors.Is(err, host.ErrNotOwner):
		return ErrNotAuthorized.WithCause(err)
	case errors.Is(err, host.ErrUnknownField), errors.Is(err, host.ErrUnknownTable):
		return appErrors.NewInternalError(op + ": " + err.Error()).WithCause(err)
	}
	return appErrors.NewStorageError(op, err)
}
