// Package migrate evolves the warehouse schema additively and applies the
// embedded index and view migrations.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mercadototal/cvm-ingest/internal/db"
	"github.com/mercadototal/cvm-ingest/internal/warehouse"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const lockID = 7304117

// LiveColumn is one column as information_schema reports it.
type LiveColumn struct {
	Table     string `db:"table_name"`
	Column    string `db:"column_name"`
	DataType  string `db:"data_type"`
	MaxLength int    `db:"max_length"`
}

// Live indexes the current schema by table, then column.
type Live map[string]map[string]LiveColumn

// Result counts the statements a run issued.
type Result struct {
	Created    int
	Added      int
	Widened    int
	Migrations []string
}

// Run brings the warehouse up to the declared tables, then applies any
// pending SQL migration in lexicographic order. Everything runs in one
// transaction under a transaction-scoped advisory lock.
func Run(ctx context.Context, pool db.Pool, specs []*warehouse.Spec) (*Result, error) {
	log := zap.L().With(zap.String("component", "migrate"))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "migrate: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return nil, eris.Wrap(err, "migrate: acquire advisory lock")
	}

	live, err := LoadLive(ctx, tx)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, st := range Plan(live, specs) {
		log.Info("evolving schema", zap.String("table", st.Table), zap.String("sql", st.SQL))
		if _, err := tx.Exec(ctx, st.SQL); err != nil {
			return nil, eris.Wrapf(err, "migrate: %s", st.SQL)
		}
		switch st.Kind {
		case CreateTable:
			res.Created++
		case AddColumn:
			res.Added++
		case WidenColumn:
			res.Widened++
		}
	}

	res.Migrations, err = applyFiles(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "migrate: commit")
	}

	log.Info("schema up to date",
		zap.Int("created", res.Created),
		zap.Int("added", res.Added),
		zap.Int("widened", res.Widened),
		zap.Strings("migrations", res.Migrations),
	)
	return res, nil
}

// LoadLive reads the columns of the current schema.
func LoadLive(ctx context.Context, q pgxscan.Querier) (Live, error) {
	var cols []LiveColumn
	if err := pgxscan.Select(ctx, q, &cols,
		`SELECT table_name, column_name, data_type, coalesce(character_maximum_length, 0) AS max_length
		 FROM information_schema.columns
		 WHERE table_schema = current_schema()
		 ORDER BY table_name, ordinal_position`); err != nil {
		return nil, eris.Wrap(err, "migrate: read live schema")
	}

	live := make(Live)
	for _, c := range cols {
		if live[c.Table] == nil {
			live[c.Table] = make(map[string]LiveColumn)
		}
		live[c.Table][c.Column] = c
	}
	return live, nil
}

// StatementKind classifies an evolution statement.
type StatementKind int

// Evolution statement kinds.
const (
	CreateTable StatementKind = iota
	AddColumn
	WidenColumn
)

// Statement is one DDL statement of a plan.
type Statement struct {
	Kind  StatementKind
	Table string
	SQL   string
}

// Plan returns the statements that make live at least as wide as specs.
// Nothing is ever dropped or narrowed.
func Plan(live Live, specs []*warehouse.Spec) []Statement {
	var out []Statement
	for _, s := range specs {
		table := pgx.Identifier{s.Name}.Sanitize()
		cols, ok := live[s.Name]
		if !ok {
			out = append(out, Statement{Kind: CreateTable, Table: s.Name, SQL: s.CreateSQL()})
			continue
		}
		for _, c := range s.Columns {
			lc, ok := cols[c.Name]
			if !ok {
				out = append(out, Statement{
					Kind:  AddColumn,
					Table: s.Name,
					SQL:   fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", table, addable(c).DDL()),
				})
				continue
			}
			if typ, wider := widen(lc, c.Type); wider {
				out = append(out, Statement{
					Kind:  WidenColumn,
					Table: s.Name,
					SQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
						table, pgx.Identifier{c.Name}.Sanitize(), typ),
				})
			}
		}
	}
	return out
}

// addable strips what an existing table cannot take on a new column: a
// primary key, and NOT NULL without a default to fill present rows.
func addable(c warehouse.Column) warehouse.Column {
	c.PrimaryKey = false
	if c.Default == "" {
		c.NotNull = false
	}
	return c
}

// widen reports whether the declared type is wider than the live one and
// returns the type to alter to.
func widen(lc LiveColumn, declared string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(declared))
	live := strings.ToLower(lc.DataType)

	switch {
	case strings.HasPrefix(d, "varchar(") && live == "character varying":
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(d, "varchar("), ")"))
		if err != nil || lc.MaxLength == 0 || n <= lc.MaxLength {
			return "", false
		}
		return d, true
	case d == "text" && live == "character varying":
		return "text", true
	case (d == "bigint" || d == "bigserial") && (live == "integer" || live == "smallint"):
		return "bigint", true
	case d == "integer" && live == "smallint":
		return "integer", true
	}
	return "", false
}

// applyFiles runs every embedded migration not yet recorded and returns
// the names it applied.
func applyFiles(ctx context.Context, tx pgx.Tx) ([]string, error) {
	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, eris.Wrap(err, "migrate: ensure schema_migrations")
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "migrate: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, eris.Wrapf(err, "migrate: read migration %s", name)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return nil, eris.Wrapf(err, "migrate: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", name); err != nil {
			return nil, eris.Wrapf(err, "migrate: record migration %s", name)
		}
		done = append(done, name)
	}
	return done, nil
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "migrate: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "migrate: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
