package mindmap

import (
	"fmt"
	"net/url"
	"strings"

	"mindmap-backend/internal/formula"
	"mindmap-backend/internal/host"
)

const (
	// FormulaOption selects a formula instead of a field for titles and
	// descriptions.
	FormulaOption = "Formula"

	ColorColumn     = "_color"
	TextColorColumn = "_textcolor"

	defaultSeparator = ", "
)

// Evaluator evaluates formulas against a scope.
type Evaluator interface {
	Eval(expr string, scope map[string]any) (any, error)
}

// DecoratorConfig is the part of a view configuration that shapes nodes.
type DecoratorConfig struct {
	PKField            string
	TitleField         string
	TitleFormula       string
	DescriptionField   string
	DescriptionFormula string
	ColorField         string
	TextColorField     string
	EditView           string
	Annotations        []Annotation
}

// Decorator maps rows to decorated nodes for one render.
type Decorator struct {
	cfg         DecoratorConfig
	eval        Evaluator
	user        *host.User
	expand      bool
	labelStyles map[string]string
}

// NewDecorator creates a decorator for one request. expand reports whether
// the state asks for aggregation leaves.
func NewDecorator(cfg DecoratorConfig, eval Evaluator, user *host.User, expand bool) *Decorator {
	return &Decorator{
		cfg:         cfg,
		eval:        eval,
		user:        user,
		expand:      expand,
		labelStyles: map[string]string{},
	}
}

// LabelStyles returns the label styles recorded so far, keyed by node id.
func (d *Decorator) LabelStyles() map[string]string {
	return d.labelStyles
}

// Node builds the decorated node for row. It satisfies NodeFunc.
func (d *Decorator) Node(row host.Row) (*Node, error) {
	pk := row[d.cfg.PKField]
	n := &Node{ID: host.KeyString(pk), PK: pk}
	if err := d.Decorate(row, n); err != nil {
		return nil, fmt.Errorf("decorating row %s: %w", n.ID, err)
	}
	return n, nil
}

// Decorate sets the node's topic, style, link, description and annotation
// output from row.
func (d *Decorator) Decorate(row host.Row, n *Node) error {
	scope := row.Scope(d.user)

	topic, err := d.fieldOrFormula(row, scope, d.cfg.TitleField, d.cfg.TitleFormula)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	n.Topic = topic

	if d.cfg.DescriptionField != "" {
		desc, err := d.fieldOrFormula(row, scope, d.cfg.DescriptionField, d.cfg.DescriptionFormula)
		if err != nil {
			return fmt.Errorf("description: %w", err)
		}
		n.Description = desc
	}

	bg := host.Display(row[colorColumn(d.cfg.ColorField, ColorColumn)])
	fg := host.Display(row[colorColumn(d.cfg.TextColorField, TextColorColumn)])
	if bg != "" || fg != "" {
		n.Style = &Style{Background: bg, Color: fg}
	}

	if d.cfg.EditView != "" {
		n.HyperLink = EditLink(d.cfg.EditView, n.PK)
	}

	for i, a := range d.cfg.Annotations {
		if guard := a.Guard(); guard != "" {
			v, err := d.eval.Eval(guard, scope)
			if err != nil {
				return fmt.Errorf("annotation %d guard: %w", i, err)
			}
			if !formula.Truthy(v) {
				continue
			}
		}
		if err := d.apply(i, a, row, scope, n); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	return nil
}

func (d *Decorator) apply(idx int, a Annotation, row host.Row, scope map[string]any, n *Node) error {
	switch a := a.(type) {
	case IconAnnotation:
		if a.Icon != "" {
			n.addIcon(a.Icon)
		}
	case TextBadgeAnnotation:
		if a.Text != "" {
			n.Tags = append(n.Tags, a.Text)
		}
	case FormulaBadgeAnnotation:
		v, err := d.eval.Eval(a.Formula, scope)
		if err != nil {
			return err
		}
		if s := host.Display(v); s != "" {
			n.Tags = append(n.Tags, s)
		}
	case LabelStyleAnnotation:
		if a.Style != "" {
			d.labelStyles[n.ID] = a.Style
		}
	case AggregationAnnotation:
		d.applyAggregation(idx, a, row[a.Key()], n)
	default:
		panic(fmt.Sprintf("mindmap: unknown annotation %T", a))
	}
	return nil
}

func (d *Decorator) applyAggregation(idx int, a AggregationAnnotation, v any, n *Node) {
	items, isList := v.([]any)
	if isList && a.LeafExpansion && d.expand {
		for i, item := range items {
			n.Children = append(n.Children, &Node{
				ID:       fmt.Sprintf("%s-agg%d-%d", n.ID, idx, i),
				Topic:    host.Display(item),
				Children: []*Node{},
			})
		}
		return
	}

	var text string
	if isList {
		sep := a.Separator
		if sep == "" {
			sep = defaultSeparator
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := host.Display(item); s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, sep)
	} else {
		text = host.Display(v)
	}
	if text != "" {
		n.Tags = append(n.Tags, text)
	}
}

func (d *Decorator) fieldOrFormula(row host.Row, scope map[string]any, field, expr string) (string, error) {
	if field != FormulaOption {
		return host.Display(row[field]), nil
	}
	v, err := d.eval.Eval(expr, scope)
	if err != nil {
		return "", err
	}
	return host.Display(v), nil
}

func colorColumn(field, joined string) string {
	if strings.Contains(field, ".") {
		return joined
	}
	return field
}

// EditLink returns the link to the edit view for the row with primary key pk.
func EditLink(editView string, pk any) string {
	return "/view/" + url.PathEscape(editView) + "?id=" + url.QueryEscape(host.KeyString(pk))
}
