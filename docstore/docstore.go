// Package docstore defines the boundary types of the document store client:
// readable and watchable Targets (document references and queries), the
// Snapshots which reads and push events produce, wire-level and decoded
// query changes, the Store driver interface, and the error taxonomy shared
// by the client layer.
package docstore

import (
	"context"
	"fmt"
	"strings"
)

// Ref is the path of a single document, as "collection/document".
// Ref is a Target: it may be read once or watched for push updates.
type Ref string

// Collection returns the collection component of the Ref.
func (r Ref) Collection() string {
	if i := strings.IndexByte(string(r), '/'); i != -1 {
		return string(r)[:i]
	}
	return ""
}

// ID returns the document ID component of the Ref.
func (r Ref) ID() string {
	if i := strings.IndexByte(string(r), '/'); i != -1 {
		return string(r)[i+1:]
	}
	return string(r)
}

// Validate returns an error if the Ref is not well-formed.
func (r Ref) Validate() error {
	if r.Collection() == "" || r.ID() == "" || strings.Count(string(r), "/") != 1 {
		return fmt.Errorf("not a valid document path (%s)", r)
	}
	return nil
}

// Read performs a one-shot read of the document.
func (r Ref) Read(ctx context.Context, store Store) (Snapshot, error) {
	return store.GetDocument(ctx, r)
}

// Watch registers |onEvent| for push updates of the document.
func (r Ref) Watch(store Store, onEvent EventFunc) (WatchHandle, error) {
	return store.WatchDocument(r, onEvent)
}

// Op is a filter comparison operator.
type Op string

// Filter comparison operators supported by Query.Where.
const (
	Eq           Op = "=="
	Lt           Op = "<"
	LtEq         Op = "<="
	Gt           Op = ">"
	GtEq         Op = ">="
	In           Op = "in"
	ArrayContain Op = "array-contains"
)

// Filter is a single field predicate of a Query.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Ordering is a single ordering term of a Query.
type Ordering struct {
	Field      string
	Descending bool
}

// Query selects documents of a collection by filter predicates, with
// optional ordering and a result limit. Query is an immutable value:
// Where, OrderBy and WithLimit each derive a new Query, leaving the
// receiver unchanged. Query is a Target: it may be read once or watched
// for push updates of its result set.
type Query struct {
	Collection string
	Filters    []Filter
	Order      []Ordering
	Limit      int // Zero means unbounded.
}

// NewQuery returns a Query selecting all documents of |collection|.
func NewQuery(collection string) Query { return Query{Collection: collection} }

// Where derives a Query which additionally requires that |field| |op| |value|.
func (q Query) Where(field string, op Op, value interface{}) Query {
	q.Filters = append(q.Filters[:len(q.Filters):len(q.Filters)],
		Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy derives a Query ordered by |field|, after any prior orderings.
func (q Query) OrderBy(field string, descending bool) Query {
	q.Order = append(q.Order[:len(q.Order):len(q.Order)],
		Ordering{Field: field, Descending: descending})
	return q
}

// WithLimit derives a Query returning at most |n| documents.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate returns an error if the Query is not well-formed.
func (q Query) Validate() error {
	if q.Collection == "" || strings.ContainsRune(q.Collection, '/') {
		return fmt.Errorf("not a valid collection name (%s)", q.Collection)
	} else if q.Limit < 0 {
		return fmt.Errorf("invalid negative limit (%d)", q.Limit)
	}
	return nil
}

// Read performs a one-shot read of the Query result set.
func (q Query) Read(ctx context.Context, store Store) (Snapshot, error) {
	return store.GetQuery(ctx, q)
}

// Watch registers |onEvent| for push updates of the Query result set.
func (q Query) Watch(store Store, onEvent EventFunc) (WatchHandle, error) {
	return store.WatchQuery(q, onEvent)
}

// Target is a readable and watchable selection of store state: either a
// single document (Ref) or a query result set (Query). The variant is
// resolved once, here, rather than by type switches scattered through the
// client layer.
type Target interface {
	// Read performs a one-shot read of the Target against the Store.
	Read(ctx context.Context, store Store) (Snapshot, error)
	// Watch registers |onEvent| for push updates of the Target. Events are
	// delivered on Store-managed goroutines until the handle is passed to
	// Unwatch.
	Watch(store Store, onEvent EventFunc) (WatchHandle, error)
}
