package docstore

import (
	"fmt"
	"time"
)

// Doc is a materialized document value: a mapping of field names to values.
type Doc map[string]interface{}

// Copy returns a shallow copy of the Doc.
func (d Doc) Copy() Doc {
	var out = make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Snapshot is a point-in-time result of reading a Target: either a
// DocumentSnapshot or a QuerySnapshot.
type Snapshot interface {
	// ReadAt is the store time at which the Snapshot was read or pushed.
	ReadAt() time.Time
}

// DocumentSnapshot is a point-in-time read of a single document.
type DocumentSnapshot struct {
	Ref        Ref
	Exists     bool // Whether the document existed at ReadTime.
	Data       Doc  // Nil if !Exists.
	CreateTime time.Time
	UpdateTime time.Time
	ReadTime   time.Time
}

// ReadAt returns the snapshot's read time.
func (s *DocumentSnapshot) ReadAt() time.Time { return s.ReadTime }

// QuerySnapshot is a point-in-time read of a Query result set, along with
// the wire-level changes relative to the previous snapshot of the same
// subscription (empty for one-shot reads and for a subscription's first
// delivery relative to nothing).
type QuerySnapshot struct {
	Query     Query
	Documents []*DocumentSnapshot
	Changes   []ChangeEntry
	ReadTime  time.Time
}

// ReadAt returns the snapshot's read time.
func (s *QuerySnapshot) ReadAt() time.Time { return s.ReadTime }

// NoIndex is the positional sentinel of a ChangeEntry or Change index
// which is meaningless for its kind (eg, the new index of a removal).
const NoIndex = -1

// Wire-level change type tags delivered by the Store within ChangeEntries.
const (
	TagAdded int32 = iota + 1
	TagRemoved
	TagModified
)

// ChangeEntry is a wire-level change to a watched query result set, as
// delivered by the Store. Its Tag is translated to a ChangeKind by
// client.DecodeChanges; indices use the NoIndex sentinel where not
// meaningful.
type ChangeEntry struct {
	Tag      int32
	Ref      Ref
	NewIndex int
	OldIndex int
}

// ChangeKind is the decoded kind of a query result set change.
type ChangeKind int

// ChangeKinds of a decoded Change.
const (
	Added ChangeKind = iota + 1
	Removed
	Modified
)

// String returns the name of the ChangeKind.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	case Modified:
		return "Modified"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is a decoded change to a query result set. NewIndex is NoIndex
// for removals, and OldIndex is NoIndex for additions.
type Change struct {
	Kind     ChangeKind
	Ref      Ref
	NewIndex int
	OldIndex int
}
