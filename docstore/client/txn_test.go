package client

import (
	"context"
	"testing"

	"github.com/alitto/pond"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"go.docstore.dev/client/docstore"
	"go.docstore.dev/client/docstore/storetest"
)

func TestRunTransactionCommits(t *testing.T) {
	var ctx = context.Background()
	var store = storetest.NewStore()

	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		txn.Set("games/one", docstore.Doc{"count": 1})
		txn.Set("games/two", docstore.Doc{"count": 2})
		return nil
	}, TxnOpts{})
	require.NoError(t, err)

	var snap, _ = store.GetDocument(ctx, "games/two")
	require.Equal(t, docstore.Doc{"count": 2}, snap.Data)
}

func TestRunTransactionRetriesInjectedConflict(t *testing.T) {
	var ctx = context.Background()
	var store = storetest.NewStore()
	store.InjectConflicts(1)

	var invoked int
	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		invoked++
		txn.Set("games/one", docstore.Doc{"count": 1})
		return nil
	}, TxnOpts{})
	require.NoError(t, err)
	require.Equal(t, 2, invoked)
}

func TestRunTransactionRetriesRealConflict(t *testing.T) {
	var ctx = context.Background()
	var store = storetest.NewStore()
	require.NoError(t, store.Set(ctx, "games/one", docstore.Doc{"count": 5}))

	var invoked int
	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		var snap, err = txn.Get("games/one")
		require.NoError(t, err)

		if invoked == 0 {
			// A concurrent writer lands between this attempt's read and
			// its commit, invalidating the read.
			require.NoError(t, store.Set(ctx, "games/one", docstore.Doc{"count": 7}))
		}
		invoked++

		txn.Set("games/one", docstore.Doc{"count": snap.Data["count"].(int) + 1})
		return nil
	}, TxnOpts{})
	require.NoError(t, err)
	require.Equal(t, 2, invoked)

	// The committed value reflects the concurrent write, not the stale read.
	var snap, _ = store.GetDocument(ctx, "games/one")
	require.Equal(t, docstore.Doc{"count": 8}, snap.Data)
}

func TestRunTransactionExhaustsItsAttemptBudget(t *testing.T) {
	var ctx = context.Background()
	var store = storetest.NewStore()
	store.InjectConflicts(2)

	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		txn.Set("games/one", docstore.Doc{"count": 1})
		return nil
	}, TxnOpts{MaxAttempts: 1})

	var exhausted docstore.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 1, exhausted.Attempts)
	require.True(t, docstore.IsConflict(exhausted.Last))

	// No partial writes were applied.
	var snap, _ = store.GetDocument(ctx, "games/one")
	require.False(t, snap.Exists)
}

func TestRunTransactionDoesNotRetryOtherErrors(t *testing.T) {
	var ctx = context.Background()
	var store = storetest.NewStore()

	var invoked int
	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		invoked++
		return errors.New("whoops")
	}, TxnOpts{})

	require.EqualError(t, err, "whoops")
	require.Equal(t, 1, invoked)
}

func TestRunTransactionOnExecutor(t *testing.T) {
	var ctx = context.Background()
	var store = storetest.NewStore()
	store.InjectConflicts(1)

	var pool = pond.New(1, 16)
	defer pool.StopAndWait()

	// The executor path retries and commits just as the inline path does.
	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		txn.Set("games/one", docstore.Doc{"count": 1})
		return nil
	}, TxnOpts{Executor: pool})
	require.NoError(t, err)

	var snap, _ = store.GetDocument(ctx, "games/one")
	require.Equal(t, docstore.Doc{"count": 1}, snap.Data)
}

func TestRunTransactionStopsRetryingOnCancellation(t *testing.T) {
	var store = storetest.NewStore()
	store.InjectConflicts(100)

	var ctx, cancel = context.WithCancel(context.Background())

	var invoked int
	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		invoked++
		cancel() // Cancel while the first attempt is in flight.
		txn.Set("games/one", docstore.Doc{"count": 1})
		return nil
	}, TxnOpts{})

	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, invoked)
}
