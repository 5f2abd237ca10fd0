package client

import (
	"github.com/pkg/errors"

	"go.docstore.dev/client/docstore"
)

// DecodeChanges translates the wire-level ChangeEntries of a QuerySnapshot
// into decoded Changes, mapping each driver tag to its ChangeKind and
// copying positional indices verbatim (including NoIndex sentinels).
// DecodeChanges is pure. An unrecognized tag is a violation of the driver
// decoding contract and fails the call; it is never retried.
func DecodeChanges(snap *docstore.QuerySnapshot) ([]docstore.Change, error) {
	var out = make([]docstore.Change, 0, len(snap.Changes))

	for _, entry := range snap.Changes {
		var kind docstore.ChangeKind

		switch entry.Tag {
		case docstore.TagAdded:
			kind = docstore.Added
		case docstore.TagRemoved:
			kind = docstore.Removed
		case docstore.TagModified:
			kind = docstore.Modified
		default:
			return nil, errors.Errorf("unrecognized change tag (%d; document %s)", entry.Tag, entry.Ref)
		}

		out = append(out, docstore.Change{
			Kind:     kind,
			Ref:      entry.Ref,
			NewIndex: entry.NewIndex,
			OldIndex: entry.OldIndex,
		})
	}
	return out, nil
}
