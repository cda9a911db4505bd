package registration

import "context"

// Directory is the registration capability consumed by request handlers.
// Registry is the in-memory implementation.
type Directory interface {
	// Register creates a registration, or refreshes the existing one when
	// the endpoint name is already registered. It returns the location.
	Register(ctx context.Context, p Params) (string, error)

	// Get returns the registration at location.
	Get(ctx context.Context, location string) (*Entry, error)

	// Find returns the registration of an endpoint name.
	Find(ctx context.Context, endpoint string) (*Entry, error)

	// Update merges p into the registration at location and renews its lease.
	Update(ctx context.Context, location string, p Params) (string, error)

	// Unregister removes the registration at location and returns it.
	Unregister(ctx context.Context, location string) (*Entry, error)
}

var _ Directory = (*Registry)(nil)
