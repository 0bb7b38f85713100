package mindmap

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/iancoleman/strcase"

	"mindmap-backend/internal/host"
)

// Annotation is a configured per-row decoration rule. The set of variants
// is closed: IconAnnotation, TextBadgeAnnotation, FormulaBadgeAnnotation,
// AggregationAnnotation and LabelStyleAnnotation.
type Annotation interface {
	// Guard is the optional display-guard formula; a falsy result skips the
	// annotation for that row.
	Guard() string
	annotation()
}

// IconAnnotation adds an icon to the node.
type IconAnnotation struct {
	Icon   string
	ShowIf string
}

// TextBadgeAnnotation adds a fixed tag.
type TextBadgeAnnotation struct {
	Text   string
	ShowIf string
}

// FormulaBadgeAnnotation adds a tag computed from the row.
type FormulaBadgeAnnotation struct {
	Formula string
	ShowIf  string
}

// LabelStyleAnnotation styles the node label client side.
type LabelStyleAnnotation struct {
	Style  string
	ShowIf string
}

// AggregationAnnotation shows a statistic over related rows: the rows of
// Table whose RefField references the node's row.
type AggregationAnnotation struct {
	Table         string
	RefField      string
	Field         string
	Stat          host.Stat
	Where         string
	Separator     string
	LeafExpansion bool
	ShowIf        string
}

func (a IconAnnotation) Guard() string         { return a.ShowIf }
func (a TextBadgeAnnotation) Guard() string    { return a.ShowIf }
func (a FormulaBadgeAnnotation) Guard() string { return a.ShowIf }
func (a LabelStyleAnnotation) Guard() string   { return a.ShowIf }
func (a AggregationAnnotation) Guard() string  { return a.ShowIf }

func (IconAnnotation) annotation()         {}
func (TextBadgeAnnotation) annotation()    {}
func (FormulaBadgeAnnotation) annotation() {}
func (LabelStyleAnnotation) annotation()   {}
func (AggregationAnnotation) annotation()  {}

// Relation returns the "table.field" path of the aggregated relation.
func (a AggregationAnnotation) Relation() string {
	return a.Table + "." + a.RefField
}

// Key returns the column the row fetcher stores the aggregate in.
func (a AggregationAnnotation) Key() string {
	return AggregationKey(a.Relation(), a.Stat, a.Field, a.Where)
}

// Aggregation returns the query the row fetcher runs for the annotation.
func (a AggregationAnnotation) Aggregation() host.Aggregation {
	return host.Aggregation{
		As:       a.Key(),
		Table:    a.Table,
		RefField: a.RefField,
		Field:    a.Field,
		Stat:     a.Stat,
		Where:    a.Where,
	}
}

// AggregationKey derives a deterministic column name from the relation path,
// statistic, field and filter, e.g. agg_comments_task_count_id.
func AggregationKey(relation string, stat host.Stat, field, where string) string {
	parts := []string{
		"agg",
		strcase.ToSnake(strings.ReplaceAll(relation, ".", "_")),
		strcase.ToSnake(string(stat)),
		strcase.ToSnake(field),
	}
	if where != "" {
		h := fnv.New32a()
		h.Write([]byte(where))
		parts = append(parts, fmt.Sprintf("%08x", h.Sum32()))
	}
	return strings.Join(parts, "_")
}

// ParseRelation splits a "table.field" relation path.
func ParseRelation(relation string) (table, field string, err error) {
	table, field, ok := strings.Cut(relation, ".")
	if !ok || table == "" || field == "" {
		return "", "", fmt.Errorf("relation %q must be table.field", relation)
	}
	return table, field, nil
}
