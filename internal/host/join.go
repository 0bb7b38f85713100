package host

import (
	"context"
	"fmt"
	"sort"
)

// RowSource is the plain select primitive a store exposes to the join engine.
type RowSource interface {
	SelectRows(ctx context.Context, table *Table, where Where) ([]Row, error)
}

// JoinEngine resolves joins, aggregations and ordering on top of a
// RowSource, so every store answers GetJoinedRows the same way.
type JoinEngine struct {
	Catalog Catalog
	Source  RowSource
	Eval    Evaluator
}

// Run executes q against table.
func (e *JoinEngine) Run(ctx context.Context, table *Table, q Query) ([]Row, error) {
	rows, err := e.Source.SelectRows(ctx, table, q.Where)
	if err != nil {
		return nil, err
	}
	if err := e.join(ctx, table, rows, q.Joins); err != nil {
		return nil, err
	}
	if err := e.aggregate(ctx, table, rows, q.Aggregations); err != nil {
		return nil, err
	}
	SortRows(rows, table.PKName(), q.OrderBy, q.OrderDesc)
	return rows, nil
}

func (e *JoinEngine) join(ctx context.Context, table *Table, rows []Row, joins []Join) error {
	indexes := map[string]map[string]Row{}
	for _, j := range joins {
		ref, err := table.Field(j.Ref)
		if err != nil {
			return err
		}
		if !ref.IsKey() {
			return fmt.Errorf("join %s: %s.%s is not a key field", j.As, table.Name, j.Ref)
		}
		target, err := e.Catalog.FindTable(ref.RefTable)
		if err != nil {
			return err
		}
		if _, err := target.Field(j.Target); err != nil {
			return err
		}
		idx, ok := indexes[target.Name]
		if !ok {
			related, err := e.Source.SelectRows(ctx, target, nil)
			if err != nil {
				return err
			}
			idx = make(map[string]Row, len(related))
			pk := target.PKName()
			for _, r := range related {
				idx[KeyString(r[pk])] = r
			}
			indexes[target.Name] = idx
		}
		for _, row := range rows {
			var v any
			if fk := row[j.Ref]; !IsNull(fk) {
				if related, ok := idx[KeyString(fk)]; ok {
					v = related[j.Target]
				}
			}
			row[j.As] = v
		}
	}
	return nil
}

func (e *JoinEngine) aggregate(ctx context.Context, table *Table, rows []Row, aggs []Aggregation) error {
	pk := table.PKName()
	for _, a := range aggs {
		child, err := e.Catalog.FindTable(a.Table)
		if err != nil {
			return err
		}
		if _, err := child.Field(a.RefField); err != nil {
			return err
		}
		if _, err := child.Field(a.Field); err != nil {
			return err
		}
		related, err := e.Source.SelectRows(ctx, child, nil)
		if err != nil {
			return err
		}
		SortRows(related, child.PKName(), "", false)
		groups := map[string][]any{}
		for _, r := range related {
			if a.Where != "" {
				if e.Eval == nil {
					return fmt.Errorf("aggregation %s: no evaluator for where formula", a.As)
				}
				ok, err := e.Eval.Truthy(a.Where, r.Scope(nil))
				if err != nil {
					return fmt.Errorf("aggregation %s: %w", a.As, err)
				}
				if !ok {
					continue
				}
			}
			key := KeyString(r[a.RefField])
			groups[key] = append(groups[key], r[a.Field])
		}
		for _, row := range rows {
			row[a.As] = computeStat(a.Stat, groups[KeyString(row[pk])])
		}
	}
	return nil
}

func computeStat(stat Stat, values []any) any {
	switch stat {
	case StatCount:
		n := int64(0)
		for _, v := range values {
			if v != nil {
				n++
			}
		}
		return n
	case StatArrayAgg:
		out := make([]any, 0, len(values))
		for _, v := range values {
			if v != nil {
				out = append(out, v)
			}
		}
		return out
	case StatSum, StatAvg:
		var sum float64
		var n int
		allInt := true
		for _, v := range values {
			f, isInt, ok := toFloat(v)
			if !ok {
				continue
			}
			allInt = allInt && isInt
			sum += f
			n++
		}
		if stat == StatAvg {
			if n == 0 {
				return nil
			}
			return sum / float64(n)
		}
		if allInt {
			return int64(sum)
		}
		return sum
	case StatMax, StatMin:
		var best any
		for _, v := range values {
			if v == nil {
				continue
			}
			c := compareValues(v, best)
			if best == nil || (stat == StatMax && c > 0) || (stat == StatMin && c < 0) {
				best = v
			}
		}
		return best
	}
	return nil
}

// SortRows orders rows by field (stable), falling back to the primary key
// so sibling order is deterministic.
func SortRows(rows []Row, pk, field string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		if field != "" {
			c := compareValues(rows[i][field], rows[j][field])
			if c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
		}
		return compareValues(rows[i][pk], rows[j][pk]) < 0
	})
}

func toFloat(v any) (f float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true, true
	case int32:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case float64:
		return n, false, true
	}
	return 0, false, false
}

// compareValues orders nil first, numbers numerically and everything else by
// display string.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, _, okA := toFloat(a)
	fb, _, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			}
			return 1
		}
	}
	sa, sb := Display(a), Display(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
