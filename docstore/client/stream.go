package client

import (
	"sync"

	"go.docstore.dev/client/docstore"
)

// Stream emits every materialized value of a watched Target, in the order
// the store delivered the underlying snapshots. Its internal queue is
// unbounded, so a slow consumer never stalls store delivery goroutines.
//
// A Stream is Open until the first of: an upstream delivery error, or a
// consumer Close. Both transitions detach the subscription exactly once,
// and events arriving afterward are dropped silently. C is closed once
// the Stream has closed and (for an upstream close) its queue has
// drained.
type Stream struct {
	sub     *Subscription
	onError func(error)
	out     chan interface{}

	mu     sync.Mutex
	queue  []interface{}
	closed bool

	wake      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

// OpenStream subscribes to |target| and returns an Open Stream. Unlike
// OpenCell it does not await a first value.
func OpenStream(store docstore.Store, target docstore.Target, opts ReactiveOpts) (*Stream, error) {
	opts = opts.withDefaults()

	var stream = &Stream{
		onError: opts.OnError,
		out:     make(chan interface{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	var sub, err = Subscribe(store, target, func(snap docstore.Snapshot, err error) {
		stream.onEvent(snap, err, opts.Materialize)
	})
	if err != nil {
		return nil, err
	}

	stream.mu.Lock()
	stream.sub = sub
	var closed = stream.closed
	stream.mu.Unlock()

	if closed {
		sub.Detach() // An error event closed the Stream while registering.
	}
	go stream.pump()
	return stream, nil
}

// C returns the channel of materialized values. It is closed when the
// Stream closes, after queued values drain.
func (s *Stream) C() <-chan interface{} { return s.out }

// Close closes the Stream from the consumer side, detaching its
// subscription and abandoning any values not yet received from C.
func (s *Stream) Close() {
	s.closeStream()
	s.doneOnce.Do(func() { close(s.done) })
}

// closeStream is the single Open -> Closed transition. After it returns
// no further value is enqueued.
func (s *Stream) closeStream() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		var sub = s.sub
		s.mu.Unlock()

		s.signal()
		if sub != nil {
			sub.Detach() // Nil only if closed mid-OpenStream, which then detaches.
		}
	})
}

func (s *Stream) onEvent(snap docstore.Snapshot, err error, materialize docstore.MaterializeFunc) {
	var value interface{}
	if err == nil {
		value, err = materialize(snap)
	}
	if err != nil {
		// An upstream error is terminal: route to OnError, then close.
		// Values already queued remain receivable from C.
		s.onError(err)
		s.closeStream()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return // Delivered after close. Dropped.
	}
	s.queue = append(s.queue, value)
	s.mu.Unlock()

	s.signal()
}

func (s *Stream) signal() {
	select {
	case s.wake <- struct{}{}:
	default: // A wake-up is already pending.
	}
}

func (s *Stream) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		var batch, closed = s.queue, s.closed
		s.queue = nil
		s.mu.Unlock()

		for _, value := range batch {
			select {
			case s.out <- value:
			case <-s.done:
				return // Consumer abandoned the Stream.
			}
		}
		if closed {
			return
		}
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
