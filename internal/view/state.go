package view

import "mindmap-backend/internal/host"

// StateField is a field that can filter the view through its state.
type StateField struct {
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	Type     host.FieldType `json:"type"`
	RefTable string         `json:"reftable,omitempty"`
	Required bool           `json:"required"`
}

// StateFields lists every non primary key field of table, all optional.
func StateFields(table *host.Table) []StateField {
	pk := table.PKName()
	out := make([]StateField, 0, len(table.Fields))
	for _, f := range table.Fields {
		if f.Name == pk || f.PrimaryKey {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		out = append(out, StateField{Name: f.Name, Label: label, Type: f.Type, RefTable: f.RefTable})
	}
	return out
}
