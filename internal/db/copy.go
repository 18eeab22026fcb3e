package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DefaultChunkSize bounds the number of rows sent per COPY round trip.
const DefaultChunkSize = 1000

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, c Copier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := c.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}

	return n, nil
}

// CopyChunks copies rows in slices of chunkSize. A chunkSize <= 0 uses DefaultChunkSize.
// The caller owns the transaction; a failed chunk leaves earlier chunks to its rollback.
func CopyChunks(ctx context.Context, c Copier, table string, columns []string, rows [][]any, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var total int64
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		n, err := CopyFrom(ctx, c, table, columns, rows[start:end])
		if err != nil {
			return total, eris.Wrapf(err, "db: chunk %d-%d", start, end)
		}
		total += n
	}
	return total, nil
}

// Identifier splits an optionally schema-qualified name into a pgx.Identifier.
func Identifier(table string) pgx.Identifier {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{table}
}
