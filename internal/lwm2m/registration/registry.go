package registration

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCheckInterval is the sweep period when Options leaves it unset.
const DefaultCheckInterval = 5 * time.Minute

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Registry.
type Options struct {
	// CheckInterval is the lease sweep period. Defaults to DefaultCheckInterval.
	CheckInterval time.Duration

	// DefaultLifetime applies to registrations without a lifetime, in
	// seconds. Defaults to DefaultLifetime.
	DefaultLifetime int64

	// Repository, when set, receives every change (write-through) and seeds
	// the registry on Load.
	Repository Repository

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type subscriber struct {
	id int
	fn func(Event)
}

// Registry is the in-memory Directory. Create one with NewRegistry.
type Registry struct {
	checkInterval   time.Duration
	defaultLifetime int64
	repo            Repository
	now             func() time.Time
	logger          Logger

	mu          sync.Mutex
	entries     map[string]*Entry // by location
	byEndpoint  map[string]string // endpoint -> location
	pending     []Event
	subscribers []subscriber
	nextSubID   int
	cancel      context.CancelFunc
	done        chan struct{}

	// dispatching is set while one caller drains pending. Other callers,
	// including subscribers calling back into the registry, only queue.
	dispatching bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.DefaultLifetime <= 0 {
		opts.DefaultLifetime = DefaultLifetime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		checkInterval:   opts.CheckInterval,
		defaultLifetime: opts.DefaultLifetime,
		repo:            opts.Repository,
		now:             opts.Now,
		logger:          noopLogger{},
		entries:         make(map[string]*Entry),
		byEndpoint:      make(map[string]string),
	}
}

// SetLogger sets the logger for the registry. Call before Start.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load restores registrations from the repository. Restored entries start
// a fresh lease window and must be renewed within their lifetime.
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	stored, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading registrations: %w", err)
	}

	now := r.now().UTC()
	r.mu.Lock()
	for i := range stored {
		e := stored[i].DeepCopy()
		e.Renewed = false
		e.lastChecked = now
		if old, ok := r.byEndpoint[e.Endpoint]; ok {
			delete(r.entries, old)
		}
		r.entries[e.Location] = e
		r.byEndpoint[e.Endpoint] = e.Location
	}
	r.mu.Unlock()

	r.logger.Info("registrations restored", "count", len(stored))
	return nil
}

// Register creates a registration for p.Endpoint, or updates the existing
// one and returns its location unchanged.
func (r *Registry) Register(ctx context.Context, p Params) (string, error) {
	if p.Endpoint == "" {
		return "", ErrMissingEndpoint
	}

	r.mu.Lock()
	if loc, ok := r.byEndpoint[p.Endpoint]; ok {
		r.updateLocked(ctx, r.entries[loc], p)
		r.mu.Unlock()
		r.flush()
		return loc, nil
	}

	now := r.now().UTC()
	e := &Entry{
		Location:    uuid.NewString(),
		Endpoint:    p.Endpoint,
		Lifetime:    r.defaultLifetime,
		CreatedAt:   now,
		UpdatedAt:   now,
		lastChecked: now,
	}
	p.apply(e)
	r.entries[e.Location] = e
	r.byEndpoint[e.Endpoint] = e.Location
	r.persistLocked(ctx, e)
	r.queueLocked(EventRegistered, e, now)
	r.mu.Unlock()

	r.logger.Info("endpoint registered", "endpoint", e.Endpoint, "location", e.Location, "lifetime", e.Lifetime)
	r.flush()
	return e.Location, nil
}

// Get returns a copy of the registration at location.
func (r *Registry) Get(_ context.Context, location string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[location]
	if !ok {
		return nil, fmt.Errorf("%w: location %q", ErrDeviceNotFound, location)
	}
	return e.DeepCopy(), nil
}

// Find returns a copy of the registration of an endpoint name.
func (r *Registry) Find(_ context.Context, endpoint string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.byEndpoint[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: endpoint %q", ErrDeviceNotFound, endpoint)
	}
	return r.entries[loc].DeepCopy(), nil
}

// Update merges p into the registration at location and renews its lease.
func (r *Registry) Update(ctx context.Context, location string, p Params) (string, error) {
	r.mu.Lock()
	e, ok := r.entries[location]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: location %q", ErrDeviceNotFound, location)
	}
	r.updateLocked(ctx, e, p)
	r.mu.Unlock()

	r.flush()
	return location, nil
}

// Unregister removes the registration at location and returns it.
func (r *Registry) Unregister(ctx context.Context, location string) (*Entry, error) {
	r.mu.Lock()
	e, ok := r.entries[location]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: location %q", ErrDeviceNotFound, location)
	}
	r.removeLocked(ctx, e)
	r.queueLocked(EventDeregistered, e, r.now().UTC())
	r.mu.Unlock()

	r.logger.Info("endpoint deregistered", "endpoint", e.Endpoint, "location", location)
	r.flush()
	return e.DeepCopy(), nil
}

// List returns copies of all registrations ordered by endpoint name.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e.DeepCopy())
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Endpoint, b.Endpoint) })
	return out
}

// Count returns the number of live registrations.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Subscribe registers fn for lifecycle events and returns a function that
// removes it.
//
// fn runs synchronously in event order and must not block. It may call back
// into the registry: events raised from inside fn are delivered after the
// current one, before the outermost call that started delivery returns.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	r.nextSubID++
	id := r.nextSubID
	r.subscribers = append(r.subscribers, subscriber{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.subscribers = slices.DeleteFunc(r.subscribers, func(s subscriber) bool { return s.id == id })
			r.mu.Unlock()
		})
	}
}

// Sweep runs one lease check and returns the number of expired entries.
// An entry is examined only when its lifetime has elapsed since it was
// last examined: unrenewed entries are removed, renewed ones are disarmed.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.now().UTC()

	r.mu.Lock()
	var expired []*Entry
	for _, e := range r.entries {
		if now.Sub(e.lastChecked) < e.LeaseDuration() {
			continue
		}
		e.lastChecked = now
		if e.Renewed {
			e.Renewed = false
			continue
		}
		expired = append(expired, e)
	}
	slices.SortFunc(expired, func(a, b *Entry) int { return cmp.Compare(a.Endpoint, b.Endpoint) })
	for _, e := range expired {
		r.removeLocked(ctx, e)
		r.queueLocked(EventExpired, e, now)
	}
	r.mu.Unlock()

	for _, e := range expired {
		r.logger.Info("registration expired", "endpoint", e.Endpoint, "location", e.Location, "lifetime", e.Lifetime)
	}
	r.flush()
	return len(expired)
}

// Start launches the periodic sweep. It stops when ctx is cancelled or
// Close is called.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.sweepLoop(ctx, r.done)

	r.logger.Info("registration sweep started", "interval", r.checkInterval.String())
	return nil
}

// Close stops the sweep and waits for it to exit. It is safe to call more
// than once, and on a registry that was never started.
func (r *Registry) Close() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (r *Registry) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				r.logger.Debug("registration sweep", "expired", n, "remaining", r.Count())
			}
		}
	}
}

func (r *Registry) updateLocked(ctx context.Context, e *Entry, p Params) {
	now := r.now().UTC()
	p.apply(e)
	e.Renewed = true
	e.UpdatedAt = now
	e.lastChecked = now
	r.persistLocked(ctx, e)
	r.queueLocked(EventUpdated, e, now)
	r.logger.Debug("registration updated", "endpoint", e.Endpoint, "location", e.Location)
}

func (r *Registry) removeLocked(ctx context.Context, e *Entry) {
	delete(r.entries, e.Location)
	if r.byEndpoint[e.Endpoint] == e.Location {
		delete(r.byEndpoint, e.Endpoint)
	}
	if r.repo == nil {
		return
	}
	if err := r.repo.Delete(ctx, e.Location); err != nil {
		r.logger.Error("failed to delete registration", "location", e.Location, "error", err)
	}
}

func (r *Registry) persistLocked(ctx context.Context, e *Entry) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Save(ctx, e.DeepCopy()); err != nil {
		r.logger.Error("failed to persist registration", "location", e.Location, "error", err)
	}
}

func (r *Registry) queueLocked(t EventType, e *Entry, at time.Time) {
	r.pending = append(r.pending, Event{
		Type:     t,
		Location: e.Location,
		Endpoint: e.Endpoint,
		Time:     at,
		Entry:    e.DeepCopy(),
	})
}

// flush delivers queued events in the order they were added. Only one
// caller delivers at a time; it keeps draining until the queue is empty,
// so events queued by concurrent or re-entrant callers are not stranded.
func (r *Registry) flush() {
	r.mu.Lock()
	if r.dispatching {
		r.mu.Unlock()
		return
	}
	r.dispatching = true

	for {
		events := r.pending
		r.pending = nil
		if len(events) == 0 {
			r.dispatching = false
			r.mu.Unlock()
			return
		}
		subs := slices.Clone(r.subscribers)
		r.mu.Unlock()

		for _, ev := range events {
			for _, s := range subs {
				r.deliver(s, ev)
			}
		}

		r.mu.Lock()
	}
}

// deliver calls one subscriber with its own copy of ev. A panicking
// subscriber is logged and does not stop delivery to the others.
func (r *Registry) deliver(s subscriber, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("registration subscriber panicked",
				"endpoint", ev.Endpoint,
				"event", string(ev.Type),
				"panic", p,
			)
		}
	}()
	ev.Entry = ev.Entry.DeepCopy()
	s.fn(ev)
}
