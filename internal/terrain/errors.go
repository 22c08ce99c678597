package terrain

import (
	"context"
	"errors"
	"fmt"

	"github.com/talgya/landscaper/internal/mesh"
)

var (
	ErrInvalidSelection    = errors.New("invalid selection")
	ErrAlreadySolid        = errors.New("terrain is already solid")
	ErrNotSolid            = errors.New("terrain is not solid")
	ErrVertexLimitExceeded = errors.New("vertex limit exceeded")
	ErrCancelled           = errors.New("cancelled")
	ErrNoTerrain           = errors.New("no terrain")
	ErrWaterNotSeparated   = errors.New("water has not been separated from the terrain")

	// Raised by the kernel; re-exported so callers need only this package.
	ErrResourceNotFound   = mesh.ErrResourceNotFound
	ErrDegenerateGeometry = mesh.ErrDegenerateGeometry
)

// SelectionError reports a selection that does not satisfy an operator's
// cardinality or element-type contract.
type SelectionError struct {
	Want string // "a single face" or "one or more faces"
	Got  string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("select %s on the terrain, got %s", e.Want, e.Got)
}

// Is makes errors.Is(err, ErrInvalidSelection) hold.
func (e *SelectionError) Is(target error) bool {
	return target == ErrInvalidSelection
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}
