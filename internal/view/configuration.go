// Package view holds mind-map view configurations: their YAML form, the
// registry that serves them, and the form and state-field descriptions the
// host's configuration screens use.
package view

import (
	"fmt"
	"strconv"
	"strings"

	"mindmap-backend/internal/host"
	"mindmap-backend/internal/mindmap"
)

const (
	DirectionSide  = "Side"
	DirectionLeft  = "Left"
	DirectionRight = "Right"

	LinkStraight = "Straight"
	LinkCurved   = "Curved"

	// ExpandStateKey is the state flag that turns aggregation leaves on.
	ExpandStateKey = "_expand"
)

// Configuration is one mind-map view.
type Configuration struct {
	Name               string           `yaml:"name" json:"name" validate:"required"`
	Table              string           `yaml:"table" json:"table" validate:"required"`
	Label              string           `yaml:"label,omitempty" json:"label,omitempty"`
	TitleField         string           `yaml:"title_field" json:"title_field" validate:"required"`
	TitleFormula       string           `yaml:"title_formula,omitempty" json:"title_formula,omitempty" validate:"required_if=TitleField Formula"`
	ParentField        string           `yaml:"parent_field" json:"parent_field" validate:"required"`
	DescriptionField   string           `yaml:"description_field,omitempty" json:"description_field,omitempty"`
	DescriptionFormula string           `yaml:"description_formula,omitempty" json:"description_formula,omitempty" validate:"required_if=DescriptionField Formula"`
	ColorField         string           `yaml:"color_field,omitempty" json:"color_field,omitempty"`
	TextColorField     string           `yaml:"text_color_field,omitempty" json:"text_color_field,omitempty"`
	OrderField         string           `yaml:"order_field,omitempty" json:"order_field,omitempty"`
	OrderDesc          bool             `yaml:"order_desc,omitempty" json:"order_desc,omitempty"`
	EditView           string           `yaml:"edit_view,omitempty" json:"edit_view,omitempty"`
	Direction          string           `yaml:"direction,omitempty" json:"direction,omitempty" validate:"omitempty,oneof=Side Left Right"`
	LinkStyle          string           `yaml:"link_style,omitempty" json:"link_style,omitempty" validate:"omitempty,oneof=Straight Curved"`
	Height             int              `yaml:"height,omitempty" json:"height,omitempty" validate:"gte=0"`
	HeightUnit         string           `yaml:"height_unit,omitempty" json:"height_unit,omitempty" validate:"omitempty,oneof=px % vh em rem"`
	RootRelationField  string           `yaml:"root_relation_field,omitempty" json:"root_relation_field,omitempty"`
	RowFormula         string           `yaml:"row_formula,omitempty" json:"row_formula,omitempty"`
	Annotations        []AnnotationSpec `yaml:"annotations,omitempty" json:"annotations,omitempty" validate:"dive"`
}

// AnnotationSpec is the stored form of an annotation: a type tag plus the
// parameters of that type.
type AnnotationSpec struct {
	Type          string `yaml:"type" json:"type" validate:"required,oneof=Icon TextBadge FormulaBadge Aggregation LabelStyle"`
	Icon          string `yaml:"icon,omitempty" json:"icon,omitempty" validate:"required_if=Type Icon"`
	Text          string `yaml:"text,omitempty" json:"text,omitempty" validate:"required_if=Type TextBadge"`
	Formula       string `yaml:"formula,omitempty" json:"formula,omitempty" validate:"required_if=Type FormulaBadge"`
	Style         string `yaml:"style,omitempty" json:"style,omitempty" validate:"required_if=Type LabelStyle"`
	Relation      string `yaml:"relation,omitempty" json:"relation,omitempty" validate:"required_if=Type Aggregation"`
	Stat          string `yaml:"stat,omitempty" json:"stat,omitempty" validate:"omitempty,oneof=Count Sum Avg Max Min ArrayAgg"`
	Field         string `yaml:"field,omitempty" json:"field,omitempty" validate:"required_if=Type Aggregation"`
	Where         string `yaml:"where,omitempty" json:"where,omitempty"`
	Separator     string `yaml:"separator,omitempty" json:"separator,omitempty"`
	LeafExpansion bool   `yaml:"leaf_expansion,omitempty" json:"leaf_expansion,omitempty"`
	ShowIf        string `yaml:"show_if,omitempty" json:"show_if,omitempty"`
}

// Annotation converts the stored form to its variant.
func (s AnnotationSpec) Annotation() (mindmap.Annotation, error) {
	switch s.Type {
	case "Icon":
		return mindmap.IconAnnotation{Icon: s.Icon, ShowIf: s.ShowIf}, nil
	case "TextBadge":
		return mindmap.TextBadgeAnnotation{Text: s.Text, ShowIf: s.ShowIf}, nil
	case "FormulaBadge":
		return mindmap.FormulaBadgeAnnotation{Formula: s.Formula, ShowIf: s.ShowIf}, nil
	case "LabelStyle":
		return mindmap.LabelStyleAnnotation{Style: s.Style, ShowIf: s.ShowIf}, nil
	case "Aggregation":
		table, field, err := mindmap.ParseRelation(s.Relation)
		if err != nil {
			return nil, err
		}
		stat := host.Stat(s.Stat)
		if stat == "" {
			stat = host.StatCount
		}
		return mindmap.AggregationAnnotation{
			Table:         table,
			RefField:      field,
			Field:         s.Field,
			Stat:          stat,
			Where:         s.Where,
			Separator:     s.Separator,
			LeafExpansion: s.LeafExpansion,
			ShowIf:        s.ShowIf,
		}, nil
	}
	return nil, fmt.Errorf("unknown annotation type %q", s.Type)
}

// AnnotationList converts every stored annotation, in order.
func (c *Configuration) AnnotationList() ([]mindmap.Annotation, error) {
	out := make([]mindmap.Annotation, 0, len(c.Annotations))
	for i, spec := range c.Annotations {
		a, err := spec.Annotation()
		if err != nil {
			return nil, fmt.Errorf("view %s annotation %d: %w", c.Name, i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// TitleIsFormula reports whether node titles are computed.
func (c *Configuration) TitleIsFormula() bool {
	return c.TitleField == mindmap.FormulaOption
}

// RootTopic labels the synthesized root node.
func (c *Configuration) RootTopic() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// DirectionValue maps the configured direction to the client constant.
// The default is Left.
func (c *Configuration) DirectionValue() mindmap.Direction {
	switch c.Direction {
	case DirectionSide:
		return mindmap.DirectionSide
	case DirectionRight:
		return mindmap.DirectionRight
	}
	return mindmap.DirectionLeft
}

// LinkStyleValue maps the configured link style to the client constant:
// Straight is 1 and Curved, the default, is 2.
func (c *Configuration) LinkStyleValue() int {
	if c.LinkStyle == LinkStraight {
		return 1
	}
	return 2
}

// HeightCSS returns the CSS height of the map container.
func (c *Configuration) HeightCSS() string {
	if c.Height <= 0 {
		return "500px"
	}
	unit := c.HeightUnit
	if unit == "" {
		unit = "px"
	}
	return strconv.Itoa(c.Height) + unit
}

// Check resolves every field the configuration names against the table, so
// a stale configuration fails with host.ErrUnknownField.
func (c *Configuration) Check(catalog host.Catalog) error {
	table, err := catalog.FindTable(c.Table)
	if err != nil {
		return err
	}
	fields := []string{c.ParentField}
	if !c.TitleIsFormula() {
		fields = append(fields, c.TitleField)
	}
	if c.DescriptionField != "" && c.DescriptionField != mindmap.FormulaOption {
		fields = append(fields, c.DescriptionField)
	}
	for _, f := range []string{c.OrderField, c.RootRelationField} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	for _, f := range fields {
		if _, err := table.Field(f); err != nil {
			return err
		}
	}
	for _, f := range []string{c.ColorField, c.TextColorField} {
		if f == "" {
			continue
		}
		if _, err := ResolveJoin(catalog, table, f, ""); err != nil {
			return err
		}
	}
	return nil
}

// ResolveJoin checks a field reference that may be dotted (fk.target) and,
// when it is, returns the join that fetches it into column as.
func ResolveJoin(catalog host.Catalog, table *host.Table, ref, as string) (*host.Join, error) {
	fk, target, dotted := strings.Cut(ref, ".")
	f, err := table.Field(fk)
	if err != nil {
		return nil, err
	}
	if !dotted {
		return nil, nil
	}
	if !f.IsKey() {
		return nil, fmt.Errorf("%s.%s is not a key field", table.Name, fk)
	}
	related, err := catalog.FindTable(f.RefTable)
	if err != nil {
		return nil, err
	}
	if _, err := related.Field(target); err != nil {
		return nil, err
	}
	return &host.Join{As: as, Ref: fk, Target: target}, nil
}
