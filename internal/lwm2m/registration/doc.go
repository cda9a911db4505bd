// Package registration tracks the LWM2M endpoints registered with the server.
//
// Every endpoint registers under a unique endpoint name and receives an
// opaque location handle. Registrations are leases: each entry declares a
// lifetime in seconds and must be refreshed with an update before it lapses.
//
// # Key Types
//
//   - Directory: the capability interface consumed by request handlers
//   - Registry: the in-memory Directory with lease sweep and lifecycle events
//   - Repository: optional persistence, with a SQLite implementation
//   - Entry: one registration, handed out as a deep copy
//   - Event: a lifecycle notification (registered, updated, deregistered, expired)
//
// # Lease Sweep
//
// The sweep runs every check interval. An entry is only examined once its
// own lifetime has elapsed since it was last examined. If it was not renewed
// in that window it is removed and an expired event is emitted; otherwise its
// renewed flag is cleared. An endpoint that stops updating is therefore
// removed between one and two lifetimes after its last refresh.
//
// # Usage
//
//	reg := registration.NewRegistry(registration.Options{
//	    CheckInterval: 5 * time.Minute,
//	})
//	unsubscribe := reg.Subscribe(func(ev registration.Event) {
//	    log.Println(ev.Type, ev.Endpoint)
//	})
//	defer unsubscribe()
//
//	if err := reg.Start(ctx); err != nil {
//	    return err
//	}
//	defer reg.Close()
//
//	loc, err := reg.Register(ctx, registration.Params{Endpoint: "sensor-1"})
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. A single mutex serialises
// register, update, unregister and the sweep. Events are queued under that
// mutex and delivered outside it, in mutation order. Subscribers must not call
// mutating Registry methods synchronously from their callback.
package registration
