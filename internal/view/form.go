package view

import (
	"mindmap-backend/internal/host"
	"mindmap-backend/internal/mindmap"
)

// ShowIf makes a form field conditional on another field's value.
type ShowIf map[string]string

// FormField is one input of a configuration form.
type FormField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Sublabel string   `json:"sublabel,omitempty"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
	Class    string   `json:"class,omitempty"`
	ShowIf   ShowIf   `json:"showIf,omitempty"`
}

// Form is one step of the configuration workflow.
type Form struct {
	Step   string      `json:"step"`
	Fields []FormField `json:"fields"`
}

// ConfigurationForm describes the "Views and fields" step for a table.
func ConfigurationForm(table *host.Table, catalog host.Catalog) (*Form, error) {
	var stringFields, parentFields, keyFields, colorFields, orderFields []string
	for _, f := range table.Fields {
		orderFields = append(orderFields, f.Name)
		switch {
		case f.Type == host.TypeString:
			stringFields = append(stringFields, f.Name)
			colorFields = append(colorFields, f.Name)
		case f.Type == host.TypeColor:
			colorFields = append(colorFields, f.Name)
		case f.IsKey() && f.RefTable == table.Name:
			parentFields = append(parentFields, f.Name)
		case f.IsKey():
			keyFields = append(keyFields, f.Name)
			related, err := catalog.FindTable(f.RefTable)
			if err != nil {
				return nil, err
			}
			for _, rf := range related.Fields {
				if rf.Type == host.TypeString || rf.Type == host.TypeColor {
					colorFields = append(colorFields, f.Name+"."+rf.Name)
				}
			}
		}
	}
	titleOptions := append(append([]string{}, stringFields...), mindmap.FormulaOption)
	expression := "validate-expression"

	return &Form{
		Step: "Views and fields",
		Fields: []FormField{
			{Name: "title_field", Label: "Title field", Type: "String", Sublabel: "Label displayed on the node.", Required: true, Options: titleOptions},
			{Name: "title_formula", Label: "Title formula", Type: "String", Class: expression, ShowIf: ShowIf{"title_field": mindmap.FormulaOption}},
			{Name: "parent_field", Label: "Parent field", Type: "String", Required: true, Options: parentFields},
			{Name: "description_field", Label: "Description field", Type: "String", Sublabel: "Shown when the mouse hovers over the node", Options: titleOptions},
			{Name: "description_formula", Label: "Description formula", Type: "String", Class: expression, ShowIf: ShowIf{"description_field": mindmap.FormulaOption}},
			{Name: "color_field", Label: "Color field", Type: "String", Options: colorFields},
			{Name: "text_color_field", Label: "Text color field", Type: "String", Options: colorFields},
			{Name: "order_field", Label: "Order field", Type: "String", Options: orderFields},
			{Name: "order_desc", Label: "Descending order", Type: "Bool"},
			{Name: "edit_view", Label: "Edit view", Type: "String", Sublabel: "Linked from each node"},
			{Name: "direction", Label: "Direction", Type: "String", Options: []string{DirectionSide, DirectionLeft, DirectionRight}},
			{Name: "link_style", Label: "Link style", Type: "String", Options: []string{LinkStraight, LinkCurved}},
			{Name: "height", Label: "Height", Type: "Integer"},
			{Name: "height_unit", Label: "Height units", Type: "String", Options: []string{"px", "%", "vh", "em", "rem"}},
			{Name: "root_relation_field", Label: "Root relation field", Type: "String", Sublabel: "A map shows the rows related to the selected row", Options: keyFields},
			{Name: "row_formula", Label: "Row values formula", Type: "String", Class: expression, Sublabel: "Object of extra values for new rows; parent is bound to the parent row"},
			{Name: "annotations", Label: "Annotations", Type: "List", Options: []string{"Icon", "TextBadge", "FormulaBadge", "Aggregation", "LabelStyle"}},
		},
	}, nil
}
