package docstore

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned by transactional reads of a document which does
// not exist, where the caller requires that it does (eg client.Update).
var ErrNotFound = errors.New("document not found")

// ErrConflict is the conflict signal of Store.Transact: a concurrent
// writer invalidated the attempt's reads before commit. Stores layered
// over gRPC transports may instead surface a codes.Aborted status;
// IsConflict recognizes both forms.
var ErrConflict = errors.New("transaction conflict")

// IsConflict returns whether |err| is classified as a transaction
// conflict, and may therefore be retried by re-running the transaction
// function against a fresh attempt.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var cause = errors.Cause(err)
	if cause == ErrConflict {
		return true
	}
	if s, ok := status.FromError(cause); ok && s.Code() == codes.Aborted {
		return true
	}
	return false
}

// IsNotFound returns whether |err| is classified as a missing document,
// either this package's ErrNotFound or a gRPC codes.NotFound status.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var cause = errors.Cause(err)
	if cause == ErrNotFound {
		return true
	}
	if s, ok := status.FromError(cause); ok && s.Code() == codes.NotFound {
		return true
	}
	return false
}

// ExhaustedError is returned when a transaction observed conflicts through
// its entire attempt budget without a successful commit. No writes of the
// transaction were applied.
type ExhaustedError struct {
	Attempts int   // Attempts which were run.
	Last     error // Conflict error of the final attempt.
}

// Error implements the error interface.
func (e ExhaustedError) Error() string {
	return fmt.Sprintf("transaction conflicted through %d attempts: %s", e.Attempts, e.Last)
}

// Unwrap returns the final attempt's conflict error.
func (e ExhaustedError) Unwrap() error { return e.Last }
