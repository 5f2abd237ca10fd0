package docstore

import (
	"fmt"
)

// MaterializeFunc converts a Snapshot into an application-level value.
type MaterializeFunc func(snap Snapshot) (interface{}, error)

// Materialize is the default MaterializeFunc: a DocumentSnapshot becomes
// its Doc, and a QuerySnapshot becomes a []Doc of its documents in result
// order.
func Materialize(snap Snapshot) (interface{}, error) {
	switch s := snap.(type) {
	case *DocumentSnapshot:
		return s.Data, nil
	case *QuerySnapshot:
		var out = make([]Doc, len(s.Documents))
		for i, d := range s.Documents {
			out[i] = d.Data
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected Snapshot type %T", snap)
	}
}

// BatchTarget resolves the set of documents targeted by a batch update.
// Resolution happens within a transaction attempt's consistent snapshot,
// never against membership computed earlier outside the transaction.
type BatchTarget interface {
	// ResolveDocs reads the targeted documents through |txn|.
	ResolveDocs(txn Txn) ([]*DocumentSnapshot, error)
}

// ResolveDocs evaluates the Query within the attempt's snapshot.
func (q Query) ResolveDocs(txn Txn) ([]*DocumentSnapshot, error) {
	var snap, err = txn.Query(q)
	if err != nil {
		return nil, err
	}
	return snap.Documents, nil
}

// RefList is an explicit list of document references, usable as a
// BatchTarget.
type RefList []Ref

// ResolveDocs reads each referenced document within the attempt's
// snapshot, in one batched call.
func (r RefList) ResolveDocs(txn Txn) ([]*DocumentSnapshot, error) {
	return txn.GetAll(r)
}
