package client

import (
	"context"

	"github.com/pkg/errors"

	"go.docstore.dev/client/docstore"
)

// Update reads |ref|, applies |transform| to its current content, and
// writes the result back, all within one retried transaction: the stored
// document reflects |transform| of the value actually read, regardless of
// concurrent writers. The written Doc is returned.
//
// |transform| must be a pure function of its input, as it re-runs on each
// conflict retry. Update requires that the document exist, and fails with
// docstore.ErrNotFound otherwise.
func Update(ctx context.Context, store docstore.Store, ref docstore.Ref, transform func(docstore.Doc) docstore.Doc, opts TxnOpts) (docstore.Doc, error) {
	var out docstore.Doc

	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		var snap, err = txn.Get(ref)
		if err != nil {
			return err
		} else if !snap.Exists {
			return errors.WithMessagef(docstore.ErrNotFound, "update of %s", ref)
		}
		out = transform(snap.Data)
		txn.Set(ref, out)
		return nil
	}, opts)

	if err != nil {
		return nil, err
	}
	updatedDocsTotal.Inc()
	return out, nil
}

// UpdateField is Update specialized to a single named field: |transform|
// is applied to the field's current value (nil if unset), and the
// document is written back with only that field altered. Atomicity
// remains document-level.
func UpdateField(ctx context.Context, store docstore.Store, ref docstore.Ref, field string, transform func(interface{}) interface{}, opts TxnOpts) (docstore.Doc, error) {
	return Update(ctx, store, ref, func(data docstore.Doc) docstore.Doc {
		var out = data.Copy()
		out[field] = transform(data[field])
		return out
	}, opts)
}

// MapUpdate applies |transform| independently to every document of
// |target|, writing all results back within one transaction: the commit
// is atomic across every targeted document, or applies none of them.
//
// A Query target is re-resolved inside each attempt's consistent
// snapshot, so membership is never stale; a RefList target reads its
// documents in one batched call and requires that each exist.
// The written Docs are returned in target order.
func MapUpdate(ctx context.Context, store docstore.Store, target docstore.BatchTarget, transform func(docstore.Doc) docstore.Doc, opts TxnOpts) ([]docstore.Doc, error) {
	var out []docstore.Doc

	var err = RunTransaction(ctx, store, func(txn docstore.Txn) error {
		var docs, err = target.ResolveDocs(txn)
		if err != nil {
			return err
		}
		out = make([]docstore.Doc, 0, len(docs))

		for _, snap := range docs {
			if !snap.Exists {
				return errors.WithMessagef(docstore.ErrNotFound, "batch update of %s", snap.Ref)
			}
			var next = transform(snap.Data)
			txn.Set(snap.Ref, next)
			out = append(out, next)
		}
		return nil
	}, opts)

	if err != nil {
		return nil, err
	}
	updatedDocsTotal.Add(float64(len(out)))
	return out, nil
}
