package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/screenlab/reports/internal/infrastructure/database"
	"github.com/screenlab/reports/pkg/query"
)

// QueryRepository executes report statements against the relational store
type QueryRepository struct {
	conn *database.Connection
}

// NewQueryRepository creates a new query repository
func NewQueryRepository(conn *database.Connection) *QueryRepository {
	return &QueryRepository{conn: conn}
}

// Stream executes the statement on a dedicated connection and returns a
// lazy cursor over the result. The connection is held until the cursor
// is closed, so large results never have to be buffered in memory.
func (r *QueryRepository) Stream(ctx context.Context, stmt query.Statement) (RowCursor, error) {
	conn, err := r.conn.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("execute query: %w", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		conn.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}

	return &dbCursor{conn: conn, rows: rows, columns: columns}, nil
}

// FetchAll executes the statement on the pool and decodes every row
func (r *QueryRepository) FetchAll(ctx context.Context, stmt query.Statement) ([]query.RowMap, error) {
	return fetchAll(ctx, r.conn.DB(), stmt)
}

// Count executes a COUNT statement and returns the scalar result
func (r *QueryRepository) Count(ctx context.Context, stmt query.Statement) (int, error) {
	return count(ctx, r.conn.DB(), stmt)
}

// Queryer is the subset of *sql.DB / *sql.Conn the cache needs to run
// prefetch and count statements.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func fetchAll(ctx context.Context, q Queryer, stmt query.Statement) ([]query.RowMap, error) {
	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	decoded, err := query.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	return decoded, nil
}

func count(ctx context.Context, q Queryer, stmt query.Statement) (int, error) {
	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("execute count: %w", err)
	}
	defer rows.Close()

	var total int
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("read count: %w", err)
		}
		return 0, nil
	}
	if err := rows.Scan(&total); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	if err := rows.Close(); err != nil {
		log.Printf("WARN: closing count result: %v", err)
	}
	return total, nil
}
