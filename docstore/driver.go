package docstore

import (
	"context"
)

// EventFunc is the callback invoked by a Store with each push event of a
// watched Target. Exactly one of |snap| or |err| is non-nil. The Store
// invokes EventFunc on goroutines it manages; per-registration invocations
// are ordered, but no cross-registration ordering exists.
type EventFunc func(snap Snapshot, err error)

// WatchHandle is an opaque registration of an EventFunc with a Store.
// Each handle is owned exclusively by the caller which registered it, and
// must be released exactly once via Store.Unwatch.
type WatchHandle interface{}

// Store is the driver boundary: a connected client of a remote document
// database, supplying one-shot reads, push subscriptions, immediate
// writes, and single-attempt transactions. Implementations own transport,
// authentication and wire marshalling, none of which this package models.
type Store interface {
	// GetDocument reads the current snapshot of a document. Reads of an
	// absent document succeed, returning a snapshot with Exists false.
	GetDocument(ctx context.Context, ref Ref) (*DocumentSnapshot, error)
	// GetQuery reads the current result set of a Query.
	GetQuery(ctx context.Context, query Query) (*QuerySnapshot, error)

	// WatchDocument registers |onEvent| for push updates of a document,
	// beginning with its current state.
	WatchDocument(ref Ref, onEvent EventFunc) (WatchHandle, error)
	// WatchQuery registers |onEvent| for push updates of a Query result
	// set, beginning with its current state.
	WatchQuery(query Query, onEvent EventFunc) (WatchHandle, error)
	// Unwatch releases a watch registration. After Unwatch returns no
	// further events are delivered, except that a delivery already in
	// flight may still be observed.
	Unwatch(handle WatchHandle) error

	// Transact runs |fn| against a single transaction attempt. Reads of
	// the attempt observe a consistent snapshot; writes buffer and apply
	// atomically at commit. A commit invalidated by a concurrent writer
	// fails with a conflict-classified error (see IsConflict), and the
	// store applies none of the attempt's writes.
	Transact(ctx context.Context, fn func(txn Txn) error) error

	// Set immediately writes |fields| as the complete content of |ref|.
	Set(ctx context.Context, ref Ref, fields Doc) error
	// Delete immediately deletes the document |ref|.
	Delete(ctx context.Context, ref Ref) error
}

// Txn is the handle of one transaction attempt. All reads and writes
// issued through it belong to that attempt; it must not be retained after
// the transaction function returns.
type Txn interface {
	// Get reads a document within the attempt's consistent snapshot.
	Get(ref Ref) (*DocumentSnapshot, error)
	// GetAll reads documents within the attempt's consistent snapshot,
	// in a single batched call. Results order matches |refs|.
	GetAll(refs []Ref) ([]*DocumentSnapshot, error)
	// Query evaluates a Query within the attempt's consistent snapshot.
	Query(query Query) (*QuerySnapshot, error)
	// Set buffers a complete write of |ref| for atomic application at commit.
	Set(ref Ref, fields Doc)
	// Delete buffers a deletion of |ref| for atomic application at commit.
	Delete(ref Ref)
}
