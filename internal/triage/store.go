package triage

import "context"

// Store is the persistence contract for state vectors, events, and learned
// overrides. All writes are atomic per record; reads return point-in-time
// snapshots. Implementations must return ErrDuplicateSource from Create when
// a vector already exists for the source message id.
type Store interface {
	// Create inserts a new state vector. All-or-nothing: no partial vector
	// may be left behind on failure.
	Create(ctx context.Context, v *StateVector) error

	// Get retrieves a state vector by internal id.
	Get(ctx context.Context, id string) (*StateVector, bool, error)

	// ListOpen returns every vector whose lifecycle is NEEDS_REPLY, WAITING,
	// or OVERDUE. A non-empty ownerFilter restricts to vectors whose owner
	// role or origin id equals the filter.
	ListOpen(ctx context.Context, ownerFilter string) ([]*StateVector, error)

	// UpdateLifecycle sets the lifecycle state and owner role of a vector and
	// bumps its updated-at timestamp. Returns ok=false when the id is unknown.
	UpdateLifecycle(ctx context.Context, id string, state LifecycleState, ownerRole string) (*StateVector, bool, error)

	// AppendEvent records an audit event. Events are append-only.
	AppendEvent(ctx context.Context, ev *MessageEvent) error

	// GetOverride looks up a learned sender→zone override.
	GetOverride(ctx context.Context, senderKey string) (Zone, bool, error)

	// SetOverride upserts a sender→zone override. Last writer wins.
	SetOverride(ctx context.Context, senderKey string, zone Zone) error
}
