// Package storetest provides an in-memory docstore.Store for tests. It
// implements snapshot-isolated transactions with write-conflict detection
// at commit, query evaluation with filters, ordering and limits, and
// ordered asynchronous delivery of watch events. Injection knobs force
// conflicts or watch errors to exercise client retry and error paths.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.docstore.dev/client/docstore"
)

// record is the stored state of one document.
type record struct {
	data       docstore.Doc
	version    int64
	createTime time.Time
	updateTime time.Time
}

// event is a queued watch delivery.
type event struct {
	snap docstore.Snapshot
	err  error
}

// watch is one live registration. Its events channel is drained by a
// dedicated goroutine, preserving per-registration delivery order while
// keeping delivery off of mutating callers.
type watch struct {
	id      uuid.UUID
	ref     docstore.Ref     // Set for document watches.
	query   *docstore.Query  // Set for query watches.
	onEvent docstore.EventFunc
	events  chan event
	prev    []*docstore.DocumentSnapshot // Last result set of a query watch.
	prevVer map[docstore.Ref]int64
}

// Store is an in-memory docstore.Store.
type Store struct {
	mu      sync.Mutex
	docs    map[docstore.Ref]*record
	version int64
	watches map[uuid.UUID]*watch

	injectConflicts int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		docs:    make(map[docstore.Ref]*record),
		watches: make(map[uuid.UUID]*watch),
	}
}

// InjectConflicts causes the next |n| transaction commits to fail with a
// conflict, regardless of their reads.
func (s *Store) InjectConflicts(n int) {
	defer s.mu.Unlock()
	s.mu.Lock()
	s.injectConflicts = n
}

// InjectWatchErr delivers |err| as an error event to every live watch.
func (s *Store) InjectWatchErr(err error) {
	defer s.mu.Unlock()
	s.mu.Lock()
	for _, w := range s.watches {
		w.events <- event{err: err}
	}
}

// GetDocument implements docstore.Store.
func (s *Store) GetDocument(_ context.Context, ref docstore.Ref) (*docstore.DocumentSnapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	s.mu.Lock()
	return s.docSnapshotLocked(ref, time.Now()), nil
}

// GetQuery implements docstore.Store.
func (s *Store) GetQuery(_ context.Context, query docstore.Query) (*docstore.QuerySnapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	s.mu.Lock()
	return s.querySnapshotLocked(query, time.Now()), nil
}

// WatchDocument implements docstore.Store. The watch's first event is the
// document's current state.
func (s *Store) WatchDocument(ref docstore.Ref, onEvent docstore.EventFunc) (docstore.WatchHandle, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	var w = &watch{
		id:      uuid.New(),
		ref:     ref,
		onEvent: onEvent,
		events:  make(chan event, 256),
	}
	defer s.mu.Unlock()
	s.mu.Lock()

	s.watches[w.id] = w
	w.events <- event{snap: s.docSnapshotLocked(ref, time.Now())}
	go w.serve()
	return w, nil
}

// WatchQuery implements docstore.Store. The watch's first event is the
// query's current result set, with every document tagged as added.
func (s *Store) WatchQuery(query docstore.Query, onEvent docstore.EventFunc) (docstore.WatchHandle, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var w = &watch{
		id:      uuid.New(),
		query:   &query,
		onEvent: onEvent,
		events:  make(chan event, 256),
	}
	defer s.mu.Unlock()
	s.mu.Lock()

	s.watches[w.id] = w
	var snap = s.querySnapshotLocked(query, time.Now())
	for i, doc := range snap.Documents {
		snap.Changes = append(snap.Changes, docstore.ChangeEntry{
			Tag:      docstore.TagAdded,
			Ref:      doc.Ref,
			NewIndex: i,
			OldIndex: docstore.NoIndex,
		})
	}
	w.prev, w.prevVer = snap.Documents, s.versionsOfLocked(snap.Documents)

	w.events <- event{snap: snap}
	go w.serve()
	return w, nil
}

// Unwatch implements docstore.Store.
func (s *Store) Unwatch(handle docstore.WatchHandle) error {
	var w = handle.(*watch)

	defer s.mu.Unlock()
	s.mu.Lock()

	if _, ok := s.watches[w.id]; ok {
		delete(s.watches, w.id)
		close(w.events)
	}
	return nil
}

// Set implements docstore.Store: an immediate, non-transactional write.
func (s *Store) Set(_ context.Context, ref docstore.Ref, fields docstore.Doc) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.mu.Lock()

	s.setLocked(ref, fields, time.Now())
	s.notifyLocked(map[docstore.Ref]struct{}{ref: {}})
	return nil
}

// Delete implements docstore.Store: an immediate, non-transactional delete.
func (s *Store) Delete(_ context.Context, ref docstore.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.mu.Lock()

	delete(s.docs, ref)
	s.version++
	s.notifyLocked(map[docstore.Ref]struct{}{ref: {}})
	return nil
}

// serve delivers queued events in order, until Unwatch closes the queue.
func (w *watch) serve() {
	for ev := range w.events {
		w.onEvent(ev.snap, ev.err)
	}
}

// setLocked applies a write of |ref| and bumps the store version.
func (s *Store) setLocked(ref docstore.Ref, fields docstore.Doc, now time.Time) {
	s.version++

	if rec, ok := s.docs[ref]; ok {
		rec.data, rec.version, rec.updateTime = fields.Copy(), s.version, now
	} else {
		s.docs[ref] = &record{
			data:       fields.Copy(),
			version:    s.version,
			createTime: now,
			updateTime: now,
		}
	}
}

// docSnapshotLocked snapshots the current state of |ref|.
func (s *Store) docSnapshotLocked(ref docstore.Ref, now time.Time) *docstore.DocumentSnapshot {
	if rec, ok := s.docs[ref]; ok {
		return &docstore.DocumentSnapshot{
			Ref:        ref,
			Exists:     true,
			Data:       rec.data.Copy(),
			CreateTime: rec.createTime,
			UpdateTime: rec.updateTime,
			ReadTime:   now,
		}
	}
	return &docstore.DocumentSnapshot{Ref: ref, ReadTime: now}
}

// querySnapshotLocked evaluates |query| over current documents.
func (s *Store) querySnapshotLocked(query docstore.Query, now time.Time) *docstore.QuerySnapshot {
	return &docstore.QuerySnapshot{
		Query:     query,
		Documents: evalQuery(query, s.docs, now),
		ReadTime:  now,
	}
}

func (s *Store) versionsOfLocked(docs []*docstore.DocumentSnapshot) map[docstore.Ref]int64 {
	var out = make(map[docstore.Ref]int64, len(docs))
	for _, doc := range docs {
		out[doc.Ref] = s.docs[doc.Ref].version
	}
	return out
}

// notifyLocked enqueues events for every watch affected by a commit of
// |changed| refs.
func (s *Store) notifyLocked(changed map[docstore.Ref]struct{}) {
	var now = time.Now()

	for _, w := range s.watches {
		if w.query == nil {
			if _, ok := changed[w.ref]; ok {
				w.events <- event{snap: s.docSnapshotLocked(w.ref, now)}
			}
			continue
		}

		var relevant bool
		for ref := range changed {
			if ref.Collection() == w.query.Collection {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}

		var snap = s.querySnapshotLocked(*w.query, now)
		snap.Changes = diffResultSets(w.prev, w.prevVer, snap.Documents, s.versionsOfLocked(snap.Documents))

		if len(snap.Changes) != 0 {
			w.prev, w.prevVer = snap.Documents, s.versionsOfLocked(snap.Documents)
			w.events <- event{snap: snap}
		}
	}
}

// diffResultSets computes wire-level changes between consecutive result
// sets of a watched query.
func diffResultSets(prev []*docstore.DocumentSnapshot, prevVer map[docstore.Ref]int64,
	next []*docstore.DocumentSnapshot, nextVer map[docstore.Ref]int64) []docstore.ChangeEntry {

	var prevIndex = make(map[docstore.Ref]int, len(prev))
	for i, doc := range prev {
		prevIndex[doc.Ref] = i
	}
	var nextIndex = make(map[docstore.Ref]int, len(next))
	for i, doc := range next {
		nextIndex[doc.Ref] = i
	}

	var out []docstore.ChangeEntry

	for oldIndex, doc := range prev {
		if _, ok := nextIndex[doc.Ref]; !ok {
			out = append(out, docstore.ChangeEntry{
				Tag:      docstore.TagRemoved,
				Ref:      doc.Ref,
				NewIndex: docstore.NoIndex,
				OldIndex: oldIndex,
			})
		}
	}
	for newIndex, doc := range next {
		if oldIndex, ok := prevIndex[doc.Ref]; !ok {
			out = append(out, docstore.ChangeEntry{
				Tag:      docstore.TagAdded,
				Ref:      doc.Ref,
				NewIndex: newIndex,
				OldIndex: docstore.NoIndex,
			})
		} else if prevVer[doc.Ref] != nextVer[doc.Ref] || oldIndex != newIndex {
			out = append(out, docstore.ChangeEntry{
				Tag:      docstore.TagModified,
				Ref:      doc.Ref,
				NewIndex: newIndex,
				OldIndex: oldIndex,
			})
		}
	}
	return out
}
