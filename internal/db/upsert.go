package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert writes rows into table, replacing rows that collide on keys. Rows
// are staged in a temp table dropped at commit, so tx must be an open
// transaction; the caller commits or rolls back.
func Upsert(ctx context.Context, tx Querier, table string, keys, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(keys) == 0 || len(columns) == 0 {
		return 0, eris.Errorf("db: upsert %s: keys and columns are required", table)
	}

	staging := pgx.Identifier{"_stage_" + strings.ReplaceAll(table, ".", "_")}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		staging.Sanitize(), identifier(table).Sanitize(),
	)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create staging table", table)
	}
	if _, err := tx.CopyFrom(ctx, staging, columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: copy staging rows", table)
	}

	tag, err := tx.Exec(ctx, upsertSQL(table, staging, keys, columns))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s", table)
	}
	return tag.RowsAffected(), nil
}

// upsertSQL updates every non-key column on conflict.
func upsertSQL(table string, staging pgx.Identifier, keys, columns []string) string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var set []string
	for _, c := range columns {
		if !isKey[c] {
			col := pgx.Identifier{c}.Sanitize()
			set = append(set, col+" = EXCLUDED."+col)
		}
	}
	cols := quoteAndJoin(columns)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		identifier(table).Sanitize(), cols, cols, staging.Sanitize(), quoteAndJoin(keys), strings.Join(set, ", "))
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
