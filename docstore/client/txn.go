package client

import (
	"context"
	"time"

	"github.com/alitto/pond"
	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"

	"go.docstore.dev/client/docstore"
)

// DefaultMaxAttempts is the transaction attempt budget applied when
// TxnOpts leaves MaxAttempts zero.
const DefaultMaxAttempts = 5

// TxnOpts configure a RunTransaction (and the Update family built on it).
// The zero value runs up to DefaultMaxAttempts attempts, inline on the
// calling goroutine.
type TxnOpts struct {
	// MaxAttempts bounds how many times the transaction function is run
	// before a persistent conflict surfaces as an ExhaustedError.
	// Zero means DefaultMaxAttempts.
	MaxAttempts int
	// Executor, if set, is the worker pool on which the transaction (all
	// of its attempts) executes. RunTransaction still blocks its caller
	// until the submitted run completes; the pool bounds concurrency of
	// transactions across callers. If nil, attempts run inline.
	Executor *pond.WorkerPool
}

// RunTransaction executes |fn| against a transaction of the Store.
// All reads within |fn| observe one consistent snapshot, and all writes
// buffer and commit atomically. If commit is invalidated by a concurrent
// writer, |fn| is re-run from scratch against a fresh attempt, with
// exponential backoff, up to the attempt budget; a persistent conflict
// surfaces as docstore.ExhaustedError. Errors of |fn| which are not
// conflict-classified propagate immediately, without retry.
//
// Because |fn| may run multiple times, it must be free of externally
// observable side effects other than its buffered writes.
func RunTransaction(ctx context.Context, store docstore.Store, fn func(txn docstore.Txn) error, opts TxnOpts) error {
	var attempts = opts.MaxAttempts
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}

	if opts.Executor == nil {
		return runTransaction(ctx, store, fn, attempts)
	}
	var err error
	opts.Executor.SubmitAndWait(func() {
		err = runTransaction(ctx, store, fn, attempts)
	})
	return err
}

func runTransaction(ctx context.Context, store docstore.Store, fn func(txn docstore.Txn) error, attempts int) error {
	var bo = backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = 0 // Bounded by |attempts|, not elapsed time.

	var lastErr error
	for attempt := 0; attempt != attempts; attempt++ {
		if attempt != 0 {
			log.WithFields(log.Fields{"err": lastErr, "attempt": attempt}).
				Warn("transaction conflicted (will retry)")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(bo.NextBackOff()):
			}
		}

		var err = store.Transact(ctx, fn)
		if err == nil {
			txnAttemptsTotal.WithLabelValues(statusOk).Inc()
			return nil
		} else if !docstore.IsConflict(err) {
			txnAttemptsTotal.WithLabelValues(statusFail).Inc()
			return err
		}
		txnAttemptsTotal.WithLabelValues(statusConflict).Inc()
		lastErr = err
	}
	return docstore.ExhaustedError{Attempts: attempts, Last: lastErr}
}
