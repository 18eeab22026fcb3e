// Package warehouse declares the warehouse tables and performs year-scoped,
// idempotent writes into them.
package warehouse

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Column is one declared column of a warehouse table.
type Column struct {
	Name       string
	Type       string // SQL type as written in DDL, e.g. varchar(14), numeric, text[]
	NotNull    bool
	Default    string
	PrimaryKey bool
	Unique     bool
	References string // referenced table, always companies(id) in practice
}

// DDL renders the column definition.
func (c Column) DDL() string {
	var b strings.Builder
	b.WriteString(pgx.Identifier{c.Name}.Sanitize())
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull && !c.PrimaryKey {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.References != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(c.References)
		b.WriteString(" ON DELETE RESTRICT")
	}
	return b.String()
}

// Scope selects the target rows a batch replaces: rows sharing the scope
// columns, and the year of DateColumn when set, with any staged row.
type Scope struct {
	Columns    []string
	DateColumn string
}

// Spec is the declaration of one table shared by DDL and writes.
type Spec struct {
	Name    string
	Columns []Column

	// Key is the unique key, also the ON CONFLICT target.
	Key []string
	// Scope is the delete scope of WriteYear.
	Scope Scope
	// NaturalKey tables are replaced row by row on Key instead of by scope.
	NaturalKey bool

	// VersionColumn orders duplicates of Key so the highest version wins.
	VersionColumn string
	// Supersede drops staged rows outranked by a higher version that shares
	// these columns.
	Supersede []string
}

// Column returns the named column.
func (s *Spec) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// CreateSQL renders CREATE TABLE IF NOT EXISTS for the table.
func (s *Spec) CreateSQL() string {
	defs := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		defs = append(defs, c.DDL())
	}
	if len(s.Key) > 0 {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
			pgx.Identifier{s.Name + "_key"}.Sanitize(), quoteJoin(s.Key)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pgx.Identifier{s.Name}.Sanitize(), strings.Join(defs, ",\n\t"))
}

// Field binds a column to the value it takes from a T.
type Field[T any] struct {
	Column
	get func(*T) any
}

// ColumnOption adjusts a column declaration.
type ColumnOption func(*Column)

func notNull(c *Column)    { c.NotNull = true }
func primaryKey(c *Column) { c.PrimaryKey = true }
func unique(c *Column)     { c.Unique = true }

func def(expr string) ColumnOption {
	return func(c *Column) { c.Default = expr }
}

func references(target string) ColumnOption {
	return func(c *Column) { c.References = target }
}

// field declares a column. A nil getter marks a column the database fills.
func field[T any](name, sqlType string, get func(*T) any, opts ...ColumnOption) Field[T] {
	c := Column{Name: name, Type: sqlType}
	for _, o := range opts {
		o(&c)
	}
	return Field[T]{Column: c, get: get}
}

// Table is a Spec plus the mapping of T onto its insert columns.
type Table[T any] struct {
	Spec
	fields []Field[T]
	insert []string
}

func define[T any](spec Spec, fields ...Field[T]) *Table[T] {
	t := &Table[T]{Spec: spec}
	for _, f := range fields {
		t.Columns = append(t.Columns, f.Column)
		if f.get != nil {
			t.fields = append(t.fields, f)
			t.insert = append(t.insert, f.Name)
		}
	}
	return t
}

// InsertColumns lists the columns Bind fills, in order.
func (t *Table[T]) InsertColumns() []string { return t.insert }

// Bind converts rows into a batch ready for COPY.
func (t *Table[T]) Bind(rows []T) Batch {
	out := make([][]any, len(rows))
	for i := range rows {
		vals := make([]any, len(t.fields))
		for j, f := range t.fields {
			vals[j] = f.get(&rows[i])
		}
		out[i] = vals
	}
	return Batch{Spec: &t.Spec, Columns: t.insert, Rows: out}
}

// Batch is a set of bound rows for one table.
type Batch struct {
	Spec    *Spec
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

func quoteJoin(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(q, ", ")
}
