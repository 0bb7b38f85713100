package sqlite

import (
	"context"
	"fmt"
	"strings"

	"mindmap-backend/internal/host"
)

// Migrate creates every catalog table that does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, t := range s.catalog.Tables() {
		ddl, err := s.createTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *Store) createTableSQL(t *host.Table) (string, error) {
	pk := t.PK()
	cols := []string{}
	if pk.Type == host.TypeInteger {
		cols = append(cols, fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", quote(pk.Name)))
	} else {
		cols = append(cols, fmt.Sprintf("%s TEXT PRIMARY KEY", quote(pk.Name)))
	}

	for _, f := range t.Fields {
		if f.Name == pk.Name {
			continue
		}
		colType, err := s.columnType(f)
		if err != nil {
			return "", err
		}
		col := quote(f.Name) + " " + colType
		if f.Required {
			col += " NOT NULL"
		}
		if f.IsKey() {
			ref, err := s.catalog.FindTable(f.RefTable)
			if err != nil {
				return "", err
			}
			col += fmt.Sprintf(" REFERENCES %s(%s)", quote(ref.Name), quote(ref.PKName()))
			switch f.OnDelete {
			case host.OnDeleteCascade:
				col += " ON DELETE CASCADE"
			case host.OnDeleteSetNull:
				col += " ON DELETE SET NULL"
			}
		}
		cols = append(cols, col)
	}

	if t.OwnershipField != "" {
		if _, err := t.Field(t.OwnershipField); err != nil {
			cols = append(cols, quote(t.OwnershipField)+" TEXT")
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quote(t.Name), strings.Join(cols, ",\n  ")), nil
}

func (s *Store) columnType(f host.Field) (string, error) {
	switch f.Type {
	case host.TypeInteger, host.TypeBool:
		return "INTEGER", nil
	case host.TypeFloat:
		return "REAL", nil
	case host.TypeString, host.TypeColor:
		return "TEXT", nil
	case host.TypeKey:
		ref, err := s.catalog.FindTable(f.RefTable)
		if err != nil {
			return "", err
		}
		if ref.PK().Type == host.TypeInteger {
			return "INTEGER", nil
		}
		return "TEXT", nil
	}
	return "", fmt.Errorf("field %s: unsupported type %q", f.Name, f.Type)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
