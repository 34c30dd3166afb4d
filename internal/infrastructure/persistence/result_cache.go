package persistence

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/screenlab/reports/pkg/query"
)

const (
	// DefaultPrefetchFactor is how many consecutive result windows a
	// single execution populates; paging forward through a result hits
	// the cache four times out of five.
	DefaultPrefetchFactor = 5

	// DefaultMaxCacheableRows bounds how many rows one execution may
	// pin in memory.
	DefaultMaxCacheableRows = 100000
)

// Window is one cached slice of a query result together with the total
// row count of the unwindowed statement.
type Window struct {
	Rows       []query.RowMap
	TotalCount int
}

type cacheEntry struct {
	stmt  string
	rows  []query.RowMap
	count int
}

// ResultWindowCache caches windows of query results keyed by the
// statement text and the requested window. Entries are only ever
// invalidated wholesale via ClearAll; callers that mutate the
// underlying tables are expected to clear the cache afterwards.
type ResultWindowCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxRows int
}

// NewResultWindowCache creates a cache that refuses to hold more than
// maxRows rows for a single statement execution.
func NewResultWindowCache(maxRows int) *ResultWindowCache {
	if maxRows <= 0 {
		maxRows = DefaultMaxCacheableRows
	}
	return &ResultWindowCache{
		entries: make(map[string]*cacheEntry),
		maxRows: maxRows,
	}
}

// Fetch returns the requested result window, executing the statement
// with a prefetch multiple of the limit on a miss and caching each
// fetched window under its own key. A nil Window with a nil error means
// the result is too large to cache and the caller should stream the
// statement directly.
func (c *ResultWindowCache) Fetch(ctx context.Context, q Queryer, stmt, countStmt query.Statement, limit, offset int) (*Window, error) {
	prefetch := DefaultPrefetchFactor
	if limit <= 1 {
		prefetch = 1
	}

	base := stripLimitClause(LiteralSQL(stmt))
	key := windowKey(base, limit, offset)

	if w := c.lookup(key, base); w != nil {
		return w, nil
	}

	fetchLimit := limit * prefetch
	if limit > 0 && fetchLimit > c.maxRows {
		if limit >= c.maxRows {
			fetchLimit = c.maxRows
		} else {
			fetchLimit = (c.maxRows / limit) * limit
		}
	}

	rows, err := fetchAll(ctx, q, query.WithWindow(stmt, fetchLimit, offset))
	if err != nil {
		return nil, err
	}

	var total int
	switch {
	case offset == 0 && (limit == 0 || len(rows) < fetchLimit):
		// the result ended inside the prefetch, so its length is the count
		total = len(rows)
	case limit == 1:
		total = 1
	default:
		total, err = count(ctx, q, countStmt)
		if err != nil {
			return nil, err
		}
	}

	if limit == 0 && total > c.maxRows {
		log.Printf("INFO: result of %d rows exceeds cacheable maximum %d, bypassing cache", total, c.maxRows)
		return nil, nil
	}

	step := limit
	if step == 0 {
		step = len(rows)
	}

	c.mu.Lock()
	for i := 0; i < prefetch; i++ {
		start := step * i
		if i > 0 && start >= len(rows) {
			break
		}
		end := start + step
		if step == 0 || end > len(rows) {
			end = len(rows)
		}
		wk := windowKey(base, limit, offset+step*i)
		c.entries[wk] = &cacheEntry{stmt: base, rows: rows[start:end], count: total}
	}
	entry := c.entries[key]
	c.mu.Unlock()

	return &Window{Rows: entry.rows, TotalCount: entry.count}, nil
}

// lookup returns the cached window for key, verifying the stored
// statement text to guard against digest collisions.
func (c *ResultWindowCache) lookup(key, stmt string) *Window {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if entry.stmt != stmt {
		log.Printf("WARN: result cache key collision for %s, re-executing", key)
		return nil
	}
	return &Window{Rows: entry.rows, TotalCount: entry.count}
}

// ClearAll drops every cached window
func (c *ResultWindowCache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
	log.Printf("INFO: result window cache cleared")
}

// Len returns the number of cached windows
func (c *ResultWindowCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// windowKey digests the statement text and window into a cache key
func windowKey(stmt string, limit, offset int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d_%d", stmt, limit, offset)))
	return hex.EncodeToString(sum[:])
}

// stripLimitClause truncates a statement at its trailing LIMIT clause
// so that every window of the same query hashes from the same base text.
func stripLimitClause(sql string) string {
	idx := strings.LastIndex(strings.ToLower(sql), " limit ")
	if idx < 0 {
		return sql
	}
	return strings.TrimSpace(sql[:idx])
}

// LiteralSQL renders the statement with its arguments bound as SQL
// literals. It is used only for cache keying, never for execution.
func LiteralSQL(stmt query.Statement) string {
	if len(stmt.Args) == 0 {
		return stmt.SQL
	}
	var b strings.Builder
	argIdx := 0
	for _, ch := range stmt.SQL {
		if ch == '?' && argIdx < len(stmt.Args) {
			b.WriteString(literal(stmt.Args[argIdx]))
			argIdx++
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func literal(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}
