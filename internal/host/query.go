package host

import "context"

// Stat is an aggregation statistic over child rows.
type Stat string

const (
	StatCount    Stat = "Count"
	StatSum      Stat = "Sum"
	StatAvg      Stat = "Avg"
	StatMax      Stat = "Max"
	StatMin      Stat = "Min"
	StatArrayAgg Stat = "ArrayAgg"
)

// Join fetches Target from the row referenced by the Key field Ref into the
// column As.
type Join struct {
	As     string
	Ref    string
	Target string
}

// Aggregation computes Stat over Field of the rows of Table whose RefField
// references the current row, optionally filtered by the Where formula, into
// the column As.
type Aggregation struct {
	As       string
	Table    string
	RefField string
	Field    string
	Stat     Stat
	Where    string
}

// Query selects rows of one table with joins and aggregations.
type Query struct {
	Where        Where
	Joins        []Join
	Aggregations []Aggregation
	OrderBy      string
	OrderDesc    bool
}

// RowStore is the host's relational row API.
type RowStore interface {
	// GetJoinedRows returns the rows of table matching q.Where with the
	// requested join and aggregation columns added.
	GetJoinedRows(ctx context.Context, table *Table, q Query) ([]Row, error)
	// GetRow returns the first row matching where or ErrRowNotFound.
	GetRow(ctx context.Context, table *Table, where Where) (Row, error)
	// InsertRow inserts values and returns the new primary key.
	InsertRow(ctx context.Context, table *Table, values Row, user *User) (any, error)
	// UpdateRow sets values on the row with primary key id.
	UpdateRow(ctx context.Context, table *Table, values Row, id any, user *User) error
	// DeleteRows removes the rows matching where.
	DeleteRows(ctx context.Context, table *Table, where Where, user *User) error
	Ping(ctx context.Context) error
}

// Evaluator evaluates host formulas. It is implemented by the formula
// package and used for aggregation filters and ownership formulas.
type Evaluator interface {
	Truthy(expr string, scope map[string]any) (bool, error)
}
