package storetest

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.docstore.dev/client/docstore"
)

// txn is one transaction attempt: reads are served from a snapshot of the
// store taken when the attempt began, and writes buffer until commit.
// Buffered writes are not visible to the attempt's own reads.
type txn struct {
	snap     map[docstore.Ref]*record
	readTime time.Time

	reads   map[docstore.Ref]struct{}
	queries []docstore.Query
	writes  map[docstore.Ref]docstore.Doc
	deletes map[docstore.Ref]struct{}
	order   []docstore.Ref // Commit order of writes and deletes.
}

// Transact implements docstore.Store: a single transaction attempt.
// At commit, the attempt conflicts if any read document has since changed,
// or if any evaluated query's result membership or versions have changed.
func (s *Store) Transact(ctx context.Context, fn func(docstore.Txn) error) error {
	s.mu.Lock()
	var t = &txn{
		snap:     make(map[docstore.Ref]*record, len(s.docs)),
		readTime: time.Now(),
		reads:    make(map[docstore.Ref]struct{}),
		writes:   make(map[docstore.Ref]docstore.Doc),
		deletes:  make(map[docstore.Ref]struct{}),
	}
	for ref, rec := range s.docs {
		var cp = *rec
		t.snap[ref] = &cp
	}
	s.mu.Unlock()

	if err := fn(t); err != nil {
		return err
	} else if err = ctx.Err(); err != nil {
		return err
	}

	defer s.mu.Unlock()
	s.mu.Lock()

	if s.injectConflicts > 0 {
		s.injectConflicts--
		return errors.WithMessage(docstore.ErrConflict, "injected")
	}
	if err := s.validateLocked(t); err != nil {
		return err
	}

	// Apply buffered writes atomically, under one version bump per write.
	var now = time.Now()
	var changed = make(map[docstore.Ref]struct{})

	for _, ref := range t.order {
		if fields, ok := t.writes[ref]; ok {
			s.setLocked(ref, fields, now)
		} else {
			delete(s.docs, ref)
			s.version++
		}
		changed[ref] = struct{}{}
	}
	s.notifyLocked(changed)
	return nil
}

// validateLocked checks the attempt's reads against current state.
func (s *Store) validateLocked(t *txn) error {
	for ref := range t.reads {
		var cur, curOk = s.docs[ref]
		var old, oldOk = t.snap[ref]

		if curOk != oldOk || (curOk && cur.version != old.version) {
			return errors.WithMessagef(docstore.ErrConflict, "document %s changed", ref)
		}
	}
	var now = time.Now()
	for _, query := range t.queries {
		var old = evalQuery(query, t.snap, now)
		var cur = evalQuery(query, s.docs, now)

		if len(old) != len(cur) {
			return errors.WithMessagef(docstore.ErrConflict, "query of %s changed", query.Collection)
		}
		for i := range old {
			if old[i].Ref != cur[i].Ref || t.snap[old[i].Ref].version != s.docs[cur[i].Ref].version {
				return errors.WithMessagef(docstore.ErrConflict, "query of %s changed", query.Collection)
			}
		}
	}
	return nil
}

// Get implements docstore.Txn.
func (t *txn) Get(ref docstore.Ref) (*docstore.DocumentSnapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	t.reads[ref] = struct{}{}

	if rec, ok := t.snap[ref]; ok {
		return &docstore.DocumentSnapshot{
			Ref:        ref,
			Exists:     true,
			Data:       rec.data.Copy(),
			CreateTime: rec.createTime,
			UpdateTime: rec.updateTime,
			ReadTime:   t.readTime,
		}, nil
	}
	return &docstore.DocumentSnapshot{Ref: ref, ReadTime: t.readTime}, nil
}

// GetAll implements docstore.Txn.
func (t *txn) GetAll(refs []docstore.Ref) ([]*docstore.DocumentSnapshot, error) {
	var out = make([]*docstore.DocumentSnapshot, 0, len(refs))
	for _, ref := range refs {
		var snap, err = t.Get(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Query implements docstore.Txn.
func (t *txn) Query(query docstore.Query) (*docstore.QuerySnapshot, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	t.queries = append(t.queries, query)

	var docs = evalQuery(query, t.snap, t.readTime)
	for _, doc := range docs {
		t.reads[doc.Ref] = struct{}{}
	}
	return &docstore.QuerySnapshot{
		Query:     query,
		Documents: docs,
		ReadTime:  t.readTime,
	}, nil
}

// Set implements docstore.Txn.
func (t *txn) Set(ref docstore.Ref, fields docstore.Doc) {
	if _, ok := t.writes[ref]; !ok {
		if _, ok = t.deletes[ref]; !ok {
			t.order = append(t.order, ref)
		}
	}
	delete(t.deletes, ref)
	t.writes[ref] = fields.Copy()
}

// Delete implements docstore.Txn.
func (t *txn) Delete(ref docstore.Ref) {
	if _, ok := t.writes[ref]; !ok {
		if _, ok = t.deletes[ref]; !ok {
			t.order = append(t.order, ref)
		}
	}
	delete(t.writes, ref)
	t.deletes[ref] = struct{}{}
}
