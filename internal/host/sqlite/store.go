package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mindmap-backend/internal/host"
)

// Store implements host.RowStore on a SQLite database.
type Store struct {
	db      *sql.DB
	catalog host.Catalog
	eval    host.Evaluator
	engine  *host.JoinEngine
}

// NewStore wraps an open database. eval is used for aggregation filters and
// ownership formulas and may be nil when neither is configured.
func NewStore(db *sql.DB, catalog host.Catalog, eval host.Evaluator) *Store {
	s := &Store{db: db, catalog: catalog, eval: eval}
	s.engine = &host.JoinEngine{Catalog: catalog, Source: s, Eval: eval}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetJoinedRows(ctx context.Context, table *host.Table, q host.Query) ([]host.Row, error) {
	return s.engine.Run(ctx, table, q)
}

// SelectRows runs a plain filtered select.
func (s *Store) SelectRows(ctx context.Context, table *host.Table, where host.Where) ([]host.Row, error) {
	clause, args, err := whereClause(table, where)
	if err != nil {
		return nil, err
	}
	query := "SELECT * FROM " + quote(table.Name) + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting %s: %w", table.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []host.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table.Name, err)
		}
		row := make(host.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, table.NormalizeRow(row))
	}
	return out, rows.Err()
}

func (s *Store) GetRow(ctx context.Context, table *host.Table, where host.Where) (host.Row, error) {
	rows, err := s.SelectRows(ctx, table, where)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, host.ErrRowNotFound
	}
	return rows[0], nil
}

func (s *Store) InsertRow(ctx context.Context, table *host.Table, values host.Row, user *host.User) (any, error) {
	if err := host.CheckInsert(table, user); err != nil {
		return nil, err
	}
	values = values.Clone()
	host.StampOwner(table, values, user)

	pk := table.PK()
	if pk.Type != host.TypeInteger && host.IsNull(values[pk.Name]) {
		values[pk.Name] = uuid.NewString()
	}

	cols := make([]string, 0, len(values))
	marks := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, name := range host.Where(values).Keys() {
		if err := s.checkColumn(table, name); err != nil {
			return nil, err
		}
		cols = append(cols, quote(name))
		marks = append(marks, "?")
		args = append(args, values[name])
	}

	var query string
	if len(cols) == 0 {
		query = "INSERT INTO " + quote(table.Name) + " DEFAULT VALUES"
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", table.Name, err)
	}
	if pk.Type != host.TypeInteger {
		return values[pk.Name], nil
	}
	return res.LastInsertId()
}

func (s *Store) UpdateRow(ctx context.Context, table *host.Table, values host.Row, id any, user *host.User) error {
	pk := table.PKName()
	existing, err := s.GetRow(ctx, table, host.Where{pk: id})
	if err != nil {
		return err
	}
	if err := host.CheckOwnership(s.eval, table, existing, user); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	sets := make([]string, 0, len(values))
	args := make([]any, 0, len(values)+1)
	for _, name := range host.Where(values).Keys() {
		if err := s.checkColumn(table, name); err != nil {
			return err
		}
		sets = append(sets, quote(name)+" = ?")
		args = append(args, values[name])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(table.Name), strings.Join(sets, ", "), quote(pk))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating %s: %w", table.Name, err)
	}
	return nil
}

func (s *Store) DeleteRows(ctx context.Context, table *host.Table, where host.Where, user *host.User) error {
	if len(where) == 0 {
		return errors.New("refusing to delete without a filter")
	}
	rows, err := s.SelectRows(ctx, table, where)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := host.CheckOwnership(s.eval, table, r, user); err != nil {
			return err
		}
	}

	clause, args, err := whereClause(table, where)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+quote(table.Name)+clause, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", table.Name, err)
	}
	return nil
}

func (s *Store) checkColumn(table *host.Table, name string) error {
	if name == table.OwnershipField && name != "" {
		return nil
	}
	_, err := table.Field(name)
	return err
}

func whereClause(table *host.Table, where host.Where) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(where))
	args := make([]any, 0, len(where))
	for _, k := range where.Keys() {
		if k != table.OwnershipField {
			if _, err := table.Field(k); err != nil {
				return "", nil, err
			}
		}
		if where[k] == nil {
			parts = append(parts, quote(k)+" IS NULL")
			continue
		}
		parts = append(parts, quote(k)+" = ?")
		args = append(args, where[k])
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
