package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.docstore.dev/client/async"
	"go.docstore.dev/client/docstore"
)

// ReactiveOpts configure an OpenCell or OpenStream.
type ReactiveOpts struct {
	// OnError is invoked with each delivery error of the subscription.
	// Default is to log a warning. For a Cell delivery errors are never
	// terminal; for a Stream an error closes the Stream after OnError
	// returns.
	OnError func(error)
	// Materialize converts each delivered Snapshot into the stored or
	// emitted value. Default is docstore.Materialize. It is invoked on
	// store-managed delivery goroutines and must not block.
	Materialize docstore.MaterializeFunc
}

func (o ReactiveOpts) withDefaults() ReactiveOpts {
	if o.OnError == nil {
		o.OnError = func(err error) {
			log.WithField("err", err).Warn("subscription delivery error")
		}
	}
	if o.Materialize == nil {
		o.Materialize = docstore.Materialize
	}
	return o
}

// Cell holds the latest materialized value of a watched Target, updated
// in place with each push event. A Cell begins unresolved and resolves
// exactly once, with its first delivered value; OpenCell does not return
// until then. Cell is safe for concurrent use.
type Cell struct {
	sub     *Subscription
	onError func(error)

	mu    sync.Mutex
	value interface{}

	resolved   async.Promise
	resolveErr error // Set at most once, prior to |resolved|.
	resolve    sync.Once
}

// OpenCell subscribes to |target| and blocks until its first successful
// snapshot is materialized and stored, returning the resolved Cell.
// OpenCell fails, detaching its subscription, if |ctx| is done first or
// if the subscription's first event is an error: a blocked creator is
// never left waiting on a target which only errors.
func OpenCell(ctx context.Context, store docstore.Store, target docstore.Target, opts ReactiveOpts) (*Cell, error) {
	opts = opts.withDefaults()

	var cell = &Cell{
		onError:  opts.OnError,
		resolved: make(async.Promise),
	}
	var sub, err = Subscribe(store, target, func(snap docstore.Snapshot, err error) {
		cell.onEvent(snap, err, opts.Materialize)
	})
	if err != nil {
		return nil, err
	}
	cell.sub = sub

	if err = cell.resolved.WaitContext(ctx); err != nil {
		cell.Close()
		return nil, err
	}
	if err = cell.resolveErr; err != nil {
		cell.Close()
		return nil, errors.WithMessage(err, "awaiting first value")
	}
	return cell, nil
}

// Value returns the latest materialized value of the Cell. Values are
// stored whole, under exclusion: a Value racing a delivery observes the
// prior or the new value, never a partial write.
func (c *Cell) Value() interface{} {
	defer c.mu.Unlock()
	c.mu.Lock()
	return c.value
}

// Close detaches the Cell's subscription. Deliveries which race the Close
// may still update the Cell; none occur after they drain.
func (c *Cell) Close() { c.sub.Detach() }

func (c *Cell) onEvent(snap docstore.Snapshot, err error, materialize docstore.MaterializeFunc) {
	if err == nil {
		var value interface{}
		if value, err = materialize(snap); err == nil {
			c.mu.Lock()
			c.value = value
			c.mu.Unlock()

			c.resolve.Do(c.resolved.Resolve)
			return
		}
	}
	// A first-event error resolves (and fails) a blocked OpenCell.
	// Later errors are routed to OnError and are not terminal.
	var wasFirst bool
	c.resolve.Do(func() {
		c.resolveErr, wasFirst = err, true
		c.resolved.Resolve()
	})
	if !wasFirst {
		c.onError(err)
	}
}
