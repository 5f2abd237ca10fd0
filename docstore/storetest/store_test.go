package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"go.docstore.dev/client/docstore"
)

func TestQueryEvaluationCases(t *testing.T) {
	var ctx = context.Background()
	var store = NewStore()

	require.NoError(t, store.Set(ctx, "games/one", docstore.Doc{"state": "open", "players": 2, "tags": []interface{}{"ranked"}}))
	require.NoError(t, store.Set(ctx, "games/two", docstore.Doc{"state": "open", "players": 4}))
	require.NoError(t, store.Set(ctx, "games/three", docstore.Doc{"state": "done", "players": 3}))
	require.NoError(t, store.Set(ctx, "other/doc", docstore.Doc{"state": "open"}))

	var refsOf = func(q docstore.Query) []docstore.Ref {
		var snap, err = store.GetQuery(ctx, q)
		require.NoError(t, err)

		var out = make([]docstore.Ref, 0, len(snap.Documents))
		for _, doc := range snap.Documents {
			out = append(out, doc.Ref)
		}
		return out
	}

	// Case: equality filter, scoped to its collection.
	require.Equal(t, []docstore.Ref{"games/one", "games/two"},
		refsOf(docstore.NewQuery("games").Where("state", docstore.Eq, "open")))

	// Case: range filters compare across numeric types.
	require.Equal(t, []docstore.Ref{"games/three", "games/two"},
		refsOf(docstore.NewQuery("games").Where("players", docstore.Gt, 2.5)))

	// Case: membership and array-contains filters.
	require.Equal(t, []docstore.Ref{"games/one", "games/three"},
		refsOf(docstore.NewQuery("games").Where("players", docstore.In, []interface{}{2, 3})))
	require.Equal(t, []docstore.Ref{"games/one"},
		refsOf(docstore.NewQuery("games").Where("tags", docstore.ArrayContain, "ranked")))

	// Case: descending order with a limit.
	require.Equal(t, []docstore.Ref{"games/two", "games/three"},
		refsOf(docstore.NewQuery("games").OrderBy("players", true).WithLimit(2)))

	// Case: empty result set.
	require.Empty(t, refsOf(docstore.NewQuery("games").Where("state", docstore.Eq, "paused")))
}

func TestDocumentWatchDeliveries(t *testing.T) {
	var ctx = context.Background()
	var store = NewStore()

	var events = make(chan docstore.Snapshot, 16)
	var handle, err = store.WatchDocument("games/one", func(snap docstore.Snapshot, err error) {
		require.NoError(t, err)
		events <- snap
	})
	require.NoError(t, err)

	// First delivery reflects the current (absent) state.
	var snap = (<-events).(*docstore.DocumentSnapshot)
	require.False(t, snap.Exists)

	require.NoError(t, store.Set(ctx, "games/one", docstore.Doc{"count": 1}))
	snap = (<-events).(*docstore.DocumentSnapshot)
	require.True(t, snap.Exists)
	require.Equal(t, docstore.Doc{"count": 1}, snap.Data)

	// Writes of other documents are not delivered.
	require.NoError(t, store.Set(ctx, "games/two", docstore.Doc{"count": 9}))
	require.NoError(t, store.Delete(ctx, "games/one"))

	snap = (<-events).(*docstore.DocumentSnapshot)
	require.False(t, snap.Exists)

	require.NoError(t, store.Unwatch(handle))
}

func TestQueryWatchChangeEntries(t *testing.T) {
	var ctx = context.Background()
	var store = NewStore()
	require.NoError(t, store.Set(ctx, "games/b", docstore.Doc{"n": 1}))

	var events = make(chan *docstore.QuerySnapshot, 16)
	var handle, err = store.WatchQuery(docstore.NewQuery("games"), func(snap docstore.Snapshot, err error) {
		require.NoError(t, err)
		events <- snap.(*docstore.QuerySnapshot)
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Unwatch(handle)) }()

	// First delivery tags the full result set as added.
	require.Equal(t, []docstore.ChangeEntry{
		{Tag: docstore.TagAdded, Ref: "games/b", NewIndex: 0, OldIndex: docstore.NoIndex},
	}, (<-events).Changes)

	// An insertion ahead of games/b shifts it: one addition, one move.
	require.NoError(t, store.Set(ctx, "games/a", docstore.Doc{"n": 2}))
	require.ElementsMatch(t, []docstore.ChangeEntry{
		{Tag: docstore.TagAdded, Ref: "games/a", NewIndex: 0, OldIndex: docstore.NoIndex},
		{Tag: docstore.TagModified, Ref: "games/b", NewIndex: 1, OldIndex: 0},
	}, (<-events).Changes)

	// An in-place update is a modification.
	require.NoError(t, store.Set(ctx, "games/a", docstore.Doc{"n": 3}))
	require.Equal(t, []docstore.ChangeEntry{
		{Tag: docstore.TagModified, Ref: "games/a", NewIndex: 0, OldIndex: 0},
	}, (<-events).Changes)

	// A deletion is a removal, and survivors keep consistent indices.
	require.NoError(t, store.Delete(ctx, "games/a"))
	require.ElementsMatch(t, []docstore.ChangeEntry{
		{Tag: docstore.TagRemoved, Ref: "games/a", NewIndex: docstore.NoIndex, OldIndex: 0},
		{Tag: docstore.TagModified, Ref: "games/b", NewIndex: 0, OldIndex: 1},
	}, (<-events).Changes)
}

func TestTransactionSnapshotIsolation(t *testing.T) {
	var ctx = context.Background()
	var store = NewStore()
	require.NoError(t, store.Set(ctx, "games/one", docstore.Doc{"count": 1}))

	var err = store.Transact(ctx, func(txn docstore.Txn) error {
		var before, err = txn.Get("games/one")
		require.NoError(t, err)

		// A write landing mid-attempt is invisible to the attempt's reads.
		require.NoError(t, store.Set(ctx, "games/two", docstore.Doc{"count": 9}))

		var after, _ = txn.Get("games/two")
		require.False(t, after.Exists)
		require.Equal(t, docstore.Doc{"count": 1}, before.Data)

		return nil
	})
	// The read of games/two was invalidated by the concurrent write.
	require.True(t, docstore.IsConflict(err))
}

func TestTransactionBuffersWritesUntilCommit(t *testing.T) {
	var ctx = context.Background()
	var store = NewStore()

	var err = store.Transact(ctx, func(txn docstore.Txn) error {
		txn.Set("games/one", docstore.Doc{"count": 1})

		// Buffered writes are not yet applied.
		var snap, _ = store.GetDocument(ctx, "games/one")
		require.False(t, snap.Exists)

		txn.Delete("games/one") // Last buffered operation wins.
		txn.Set("games/two", docstore.Doc{"count": 2})
		return nil
	})
	require.NoError(t, err)

	var one, _ = store.GetDocument(ctx, "games/one")
	require.False(t, one.Exists)
	var two, _ = store.GetDocument(ctx, "games/two")
	require.Equal(t, docstore.Doc{"count": 2}, two.Data)
}

func TestTransactionGetAllOrder(t *testing.T) {
	var ctx = context.Background()
	var store = NewStore()
	require.NoError(t, store.Set(ctx, "games/a", docstore.Doc{"n": 1}))

	require.NoError(t, store.Transact(ctx, func(txn docstore.Txn) error {
		var snaps, err = txn.GetAll([]docstore.Ref{"games/missing", "games/a"})
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		require.False(t, snaps[0].Exists)
		require.True(t, snaps[1].Exists)
		return nil
	}))
}
