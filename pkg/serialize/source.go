package serialize

import "github.com/screenlab/reports/pkg/query"

// RowSource is a forward-only sequence of decoded rows. It is satisfied
// by the persistence cursors and by the post-processing passes in this
// package, which compose into a lazy pull pipeline.
type RowSource interface {
	Next() bool
	Row() query.RowMap
	Err() error
	Close() error
}
