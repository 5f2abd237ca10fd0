package client

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.docstore.dev/client/docstore"
)

// Subscription owns exactly one watch registration of a Store. It is held
// by a Cell, a Stream, or a direct caller, and never transfers between
// them: the holder which created it is the one which must Detach it.
type Subscription struct {
	id     uuid.UUID
	store  docstore.Store
	handle docstore.WatchHandle
	detach sync.Once
}

// Subscribe registers |onEvent| for push events of |target|, returning a
// Subscription which owns the registration. Each event carries a Snapshot
// or an error, never both. An error event does not release the
// registration; the holder decides whether it is terminal.
func Subscribe(store docstore.Store, target docstore.Target, onEvent docstore.EventFunc) (*Subscription, error) {
	var sub = &Subscription{
		id:    uuid.New(),
		store: store,
	}
	var handle, err = target.Watch(store, func(snap docstore.Snapshot, err error) {
		if err != nil {
			watchEventsTotal.WithLabelValues(statusError).Inc()
		} else {
			watchEventsTotal.WithLabelValues(statusOk).Inc()
		}
		onEvent(snap, err)
	})
	if err != nil {
		return nil, err
	}
	sub.handle = handle
	return sub, nil
}

// Detach releases the watch registration. It is idempotent. Detach is not
// instantaneous with respect to an in-flight delivery: an event racing the
// Detach may still be observed, as the underlying store provides no
// stronger guarantee.
func (s *Subscription) Detach() {
	s.detach.Do(func() {
		if err := s.store.Unwatch(s.handle); err != nil {
			log.WithFields(log.Fields{"err": err, "subscription": s.id}).
				Warn("failed to release watch registration")
		}
	})
}
