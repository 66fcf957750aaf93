package call

import (
	"context"
	"time"
)

// DefaultListLimit bounds list pages when the caller asks for no limit.
const DefaultListLimit = 50

// Filter narrows List results.
type Filter struct {
	// Status, when non-empty, restricts results to one lifecycle state.
	Status Status

	// Limit caps the page size. Zero or negative means DefaultListLimit;
	// values above DefaultListLimit are clamped down to it.
	Limit int
}

// Store is the durable record of calls. Implementations must make
// Transition atomic: read current status, validate the edge, write the
// new status as one step, so concurrent transition requests for the same
// call serialize instead of double-applying.
type Store interface {
	// Create persists a new call. The caller supplies a fully-populated
	// record in StatusCreated.
	Create(ctx context.Context, c *Call) error

	// Get returns the call or ErrNotFound.
	Get(ctx context.Context, id string) (*Call, error)

	// List returns calls most-recent-first, bounded per Filter.
	List(ctx context.Context, f Filter) ([]*Call, error)

	// Transition atomically moves the call to the target status, stamping
	// at into the timestamp column the target owns (StartedAt for ACTIVE,
	// HandedOffAt for HANDED_OFF, EndedAt for ENDED). Returns the updated
	// call, ErrNotFound, or a TransitionError when the current status
	// cannot reach target.
	Transition(ctx context.Context, id string, target Status, at time.Time) (*Call, error)

	// UpdateContext overwrites the rolling summary and entity map.
	// Returns ErrCallEnded if the call is ENDED, ErrNotFound if unknown.
	UpdateContext(ctx context.Context, id, summary string, entities map[string][]string) (*Call, error)
}
