package persistence

import (
	"database/sql"

	"github.com/screenlab/reports/pkg/query"
)

// RowCursor is a forward-only, single-pass sequence of decoded rows.
// Cursors are not restartable; Close must be called on every exit path.
type RowCursor interface {
	// Next advances to the next row, returning false at the end of the
	// sequence or on error
	Next() bool

	// Row returns the current row after a successful Next
	Row() query.RowMap

	// Err returns the first error encountered while iterating
	Err() error

	// Close releases the underlying resources
	Close() error
}

// dbCursor streams rows from a live result set on a checked-out
// connection; closing the cursor releases the connection.
type dbCursor struct {
	conn    *sql.Conn
	rows    *sql.Rows
	columns []string
	current query.RowMap
	err     error
	closed  bool
}

func (c *dbCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		if c.err == nil {
			c.err = c.rows.Err()
		}
		return false
	}
	c.current, c.err = query.DecodeRow(c.rows, c.columns)
	return c.err == nil
}

func (c *dbCursor) Row() query.RowMap {
	return c.current
}

func (c *dbCursor) Err() error {
	return c.err
}

func (c *dbCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SliceCursor adapts pre-fetched rows (e.g. a cached result window) to the
// RowCursor interface.
type SliceCursor struct {
	rows  []query.RowMap
	index int
}

// NewSliceCursor creates a cursor over the given rows
func NewSliceCursor(rows []query.RowMap) *SliceCursor {
	return &SliceCursor{rows: rows}
}

func (c *SliceCursor) Next() bool {
	if c.index >= len(c.rows) {
		return false
	}
	c.index++
	return true
}

func (c *SliceCursor) Row() query.RowMap {
	return c.rows[c.index-1]
}

func (c *SliceCursor) Err() error {
	return nil
}

func (c *SliceCursor) Close() error {
	return nil
}
