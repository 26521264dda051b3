package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core"
)

// Postgres error codes
const (
	codeInvalidText     pq.ErrorCode = "22P02"
	codeForeignKey      pq.ErrorCode = "23503"
	codeUniqueViolation pq.ErrorCode = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// selectAll runs a SELECT and scans every row into dest, a pointer to a slice of structs with `db` tags.
func (repo repository) selectAll(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer, dest interface{}) error {
	statement, args, err := q.ToSql()
	if err != nil {
		return err
	}
	rows, err := exec.QueryContext(ctx, statement, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// count runs a SELECT count(*) query.
func (repo repository) count(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder) (int, error) {
	statement, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = exec.QueryRowContext(ctx, statement, args...).Scan(&n)
	return n, err
}

// execAffected runs a write statement and returns how many rows it touched.
func (repo repository) execAffected(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (int, error) {
	statement, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	result, err := exec.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func pgErrCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// orderBy whitelists the ordering fields, then breaks ties on id.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool) []string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	return append(clauses, "id ASC")
}
