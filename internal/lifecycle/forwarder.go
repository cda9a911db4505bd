// Package lifecycle forwards registration directory events to the outside
// world: MQTT topics, InfluxDB points and the WebSocket event stream.
//
// The directory delivers events synchronously, so the Forwarder only queues
// them in the subscriber callback and does the I/O on its own goroutine.
// Delivery failures are logged and never reach the directory.
//
// # Topics
//
//	lwm2m/registration/{endpoint}/registered    retained
//	lwm2m/registration/{endpoint}/updated       retained
//	lwm2m/registration/{endpoint}/deregistered
//	lwm2m/registration/{endpoint}/expired
//
// When a registration ends, the retained registered and updated messages
// are cleared.
package lifecycle

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
)

// DefaultQueueSize is the event buffer used when Options.QueueSize is zero.
const DefaultQueueSize = 256

// Source is a directory that emits lifecycle events.
type Source interface {
	Subscribe(fn func(registration.Event)) (unsubscribe func())
}

// Publisher sends MQTT messages. *mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventWriter records lifecycle events. *influxdb.Client implements it.
type EventWriter interface {
	WriteRegistrationEvent(ev influxdb.RegistrationEvent)
}

// Broadcaster pushes events to live clients. The API WebSocket hub
// implements it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging interface used by the Forwarder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Forwarder. Every sink is optional.
type Options struct {
	Publisher   Publisher
	Writer      EventWriter
	Broadcaster Broadcaster

	// QoS is used for every MQTT message.
	QoS byte

	// QueueSize bounds the number of events waiting for delivery. Events
	// arriving while the queue is full are dropped.
	QueueSize int
}

// Forwarder delivers directory events to its sinks.
type Forwarder struct {
	publisher   Publisher
	writer      EventWriter
	broadcaster Broadcaster
	qos         byte
	logger      Logger

	queue   chan registration.Event
	dropped atomic.Uint64
}

// New creates a forwarder. Call Attach to receive events and Run to
// deliver them.
func New(opts Options) *Forwarder {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Forwarder{
		publisher:   opts.Publisher,
		writer:      opts.Writer,
		broadcaster: opts.Broadcaster,
		qos:         opts.QoS,
		logger:      noopLogger{},
		queue:       make(chan registration.Event, size),
	}
}

// SetLogger sets the logger. Call before Run.
func (f *Forwarder) SetLogger(logger Logger) {
	f.logger = logger
}

// Attach subscribes to src and returns the function that detaches.
func (f *Forwarder) Attach(src Source) (detach func()) {
	return src.Subscribe(f.Enqueue)
}

// Enqueue queues ev without blocking. It drops ev when the queue is full.
func (f *Forwarder) Enqueue(ev registration.Event) {
	select {
	case f.queue <- ev:
	default:
		f.dropped.Add(1)
		f.logger.Warn("lifecycle queue full, event dropped",
			"endpoint", ev.Endpoint,
			"event", string(ev.Type),
		)
	}
}

// Dropped returns the number of events lost to a full queue.
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}

// Run delivers queued events until ctx is cancelled, then delivers what is
// still queued and returns.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case ev := <-f.queue:
			f.Forward(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-f.queue:
					f.Forward(ev)
				default:
					return
				}
			}
		}
	}
}

// Forward delivers one event to every sink synchronously.
func (f *Forwarder) Forward(ev registration.Event) {
	if f.publisher != nil {
		f.publish(ev)
	}
	if f.writer != nil {
		f.writer.WriteRegistrationEvent(pointFor(ev))
	}
	if f.broadcaster != nil {
		f.broadcaster.Broadcast(Channel(ev.Type), ev)
	}
}

// Channel returns the WebSocket channel name for an event type, e.g.
// "registration.registered".
func Channel(t registration.EventType) string {
	return "registration." + string(t)
}

func (f *Forwarder) publish(ev registration.Event) {
	topics := mqtt.Topics{}

	payload, err := json.Marshal(ev)
	if err != nil {
		f.logger.Warn("failed to marshal lifecycle event", "endpoint", ev.Endpoint, "error", err)
		return
	}

	retained := ev.Type == registration.EventRegistered || ev.Type == registration.EventUpdated
	topic := topics.RegistrationEvent(ev.Endpoint, string(ev.Type))
	if err := f.publisher.Publish(topic, payload, f.qos, retained); err != nil {
		f.logger.Warn("failed to publish lifecycle event", "topic", topic, "error", err)
		return
	}
	f.logger.Debug("lifecycle event published", "topic", topic)

	if retained {
		return
	}
	// An empty retained message deletes the broker's retained copy.
	for _, t := range []registration.EventType{registration.EventRegistered, registration.EventUpdated} {
		stale := topics.RegistrationEvent(ev.Endpoint, string(t))
		if err := f.publisher.Publish(stale, nil, f.qos, true); err != nil {
			f.logger.Warn("failed to clear retained lifecycle event", "topic", stale, "error", err)
		}
	}
}

func pointFor(ev registration.Event) influxdb.RegistrationEvent {
	p := influxdb.RegistrationEvent{
		Endpoint: ev.Endpoint,
		Event:    string(ev.Type),
		Location: ev.Location,
		Time:     ev.Time,
	}
	if ev.Entry != nil {
		p.Lifetime = ev.Entry.Lifetime
		p.Binding = ev.Entry.Binding
	}
	return p
}
