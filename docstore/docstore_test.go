package docstore

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRefComponentsAndValidation(t *testing.T) {
	var ref = Ref("games/one")
	require.Equal(t, "games", ref.Collection())
	require.Equal(t, "one", ref.ID())
	require.NoError(t, ref.Validate())

	// Case: missing document ID.
	require.Error(t, Ref("games/").Validate())
	// Case: missing collection.
	require.Error(t, Ref("/one").Validate())
	// Case: no separator.
	require.Error(t, Ref("games").Validate())
	// Case: nested path.
	require.Error(t, Ref("games/one/turns").Validate())
}

func TestQueryDerivationsAreImmutable(t *testing.T) {
	var base = NewQuery("games").Where("state", Eq, "open")

	var q1 = base.Where("players", Gt, 2).WithLimit(5)
	var q2 = base.OrderBy("created", true)

	// Derivations don't alter |base| or each other.
	require.Len(t, base.Filters, 1)
	require.Empty(t, base.Order)
	require.Zero(t, base.Limit)

	require.Len(t, q1.Filters, 2)
	require.Equal(t, 5, q1.Limit)
	require.Empty(t, q1.Order)

	require.Len(t, q2.Filters, 1)
	require.Equal(t, []Ordering{{Field: "created", Descending: true}}, q2.Order)

	require.NoError(t, q1.Validate())
	require.Error(t, NewQuery("games/one").Validate())
	require.Error(t, NewQuery("").Validate())
	require.Error(t, Query{Collection: "games", Limit: -1}.Validate())
}

func TestConflictClassification(t *testing.T) {
	// Case: the package's own conflict error, bare and wrapped.
	require.True(t, IsConflict(ErrConflict))
	require.True(t, IsConflict(errors.WithMessage(ErrConflict, "document games/one changed")))

	// Case: a gRPC Aborted status from a remote driver.
	require.True(t, IsConflict(status.Error(codes.Aborted, "contention")))

	// Case: other errors are not conflicts.
	require.False(t, IsConflict(nil))
	require.False(t, IsConflict(errors.New("whoops")))
	require.False(t, IsConflict(status.Error(codes.Unavailable, "down")))
	require.False(t, IsConflict(ErrNotFound))
}

func TestNotFoundClassification(t *testing.T) {
	require.True(t, IsNotFound(ErrNotFound))
	require.True(t, IsNotFound(errors.WithMessagef(ErrNotFound, "update of %s", Ref("games/one"))))
	require.True(t, IsNotFound(status.Error(codes.NotFound, "no such document")))

	require.False(t, IsNotFound(nil))
	require.False(t, IsNotFound(ErrConflict))
}

func TestExhaustedErrorUnwrapsItsCause(t *testing.T) {
	var err = ExhaustedError{Attempts: 3, Last: ErrConflict}

	require.EqualError(t, err, "transaction conflicted through 3 attempts: transaction conflict")
	require.Equal(t, ErrConflict, err.Unwrap())
}

func TestDefaultMaterialization(t *testing.T) {
	var doc = &DocumentSnapshot{
		Ref:    "games/one",
		Exists: true,
		Data:   Doc{"count": 5},
	}
	var value, err = Materialize(doc)
	require.NoError(t, err)
	require.Equal(t, Doc{"count": 5}, value)

	value, err = Materialize(&QuerySnapshot{
		Documents: []*DocumentSnapshot{
			doc,
			{Ref: "games/two", Exists: true, Data: Doc{"count": 8}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []Doc{{"count": 5}, {"count": 8}}, value)
}

func TestChangeKindNames(t *testing.T) {
	require.Equal(t, "Added", Added.String())
	require.Equal(t, "Removed", Removed.String())
	require.Equal(t, "Modified", Modified.String())
	require.Equal(t, "ChangeKind(9)", ChangeKind(9).String())
}
