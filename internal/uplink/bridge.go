package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/content"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

const handlerTimeout = 5 * time.Second

// Client is the MQTT surface the bridge needs. *mqtt.Client implements it.
type Client interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Recorder records decoded instances. *telemetry.Recorder implements it.
type Recorder interface {
	Record(endpoint string, object, instance uint16, obj schema.Object, s *schema.Schema) int
}

// Logger is the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Bridge. Directory and Processor are required.
type Options struct {
	Directory registration.Directory
	Processor *content.Processor

	// Recorder is optional.
	Recorder Recorder

	// QoS is used for subscriptions and published state.
	QoS byte
}

// Bridge handles uplink and resource directory messages.
type Bridge struct {
	dir      registration.Directory
	proc     *content.Processor
	recorder Recorder
	qos      byte
	client   Client
	logger   Logger
}

// State is the payload published on state topics.
type State struct {
	Endpoint string        `json:"endpoint"`
	Object   uint16        `json:"object"`
	Instance uint16        `json:"instance"`
	Time     time.Time     `json:"time"`
	Values   schema.Object `json:"values"`
}

// New creates a bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Directory == nil {
		return nil, errors.New("uplink: directory is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("uplink: processor is required")
	}
	return &Bridge{
		dir:      opts.Directory,
		proc:     opts.Processor,
		recorder: opts.Recorder,
		qos:      opts.QoS,
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger. Call before Start.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to uplink and resource directory topics on client.
func (b *Bridge) Start(client Client) error {
	b.client = client
	topics := mqtt.Topics{}

	if err := client.Subscribe(topics.AllUplinks(), b.qos, b.HandleUplink); err != nil {
		return fmt.Errorf("subscribing to uplinks: %w", err)
	}
	if err := client.Subscribe(topics.AllRDRequests(), b.qos, b.HandleRD); err != nil {
		return fmt.Errorf("subscribing to resource directory requests: %w", err)
	}
	b.logger.Info("uplink bridge started",
		"uplinks", topics.AllUplinks(),
		"rd", topics.AllRDRequests(),
	)
	return nil
}

// HandleUplink decodes one uplink message. Messages from unregistered
// endpoints return nil after a debug log.
func (b *Bridge) HandleUplink(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	up, err := mqtt.ParseUplink(topic)
	if err != nil {
		return err
	}
	if _, err := b.dir.Find(ctx, up.Endpoint); err != nil {
		if errors.Is(err, registration.ErrDeviceNotFound) {
			b.logger.Debug("uplink from unregistered endpoint dropped", "endpoint", up.Endpoint, "topic", topic)
			return nil
		}
		return err
	}

	state, err := b.Decode(up, payload)
	if err != nil {
		return fmt.Errorf("endpoint %s: %w", up.Endpoint, err)
	}

	if b.client == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	stateTopic := mqtt.Topics{}.State(up.Endpoint, up.Object, up.Instance)
	if err := b.client.Publish(stateTopic, data, b.qos, true); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}

// Decode parses an uplink payload and records its telemetry.
func (b *Bridge) Decode(up mqtt.UplinkTopic, payload []byte) (*State, error) {
	format, err := content.ParseFormat(up.Format)
	if err != nil {
		return nil, err
	}
	path := content.InstancePath(up.Object, up.Instance)
	obj, err := b.proc.Decode(path, format, payload)
	if err != nil {
		return nil, fmt.Errorf("decoding %s as %s: %w", path, format, err)
	}

	if b.recorder != nil {
		s, err := b.proc.Schema(up.Object)
		if err == nil {
			n := b.recorder.Record(up.Endpoint, up.Object, up.Instance, obj, s)
			b.logger.Debug("uplink recorded", "endpoint", up.Endpoint, "path", path.String(), "points", n)
		}
	}

	values, dropped := finiteObject(obj, "")
	if len(dropped) > 0 {
		slices.Sort(dropped)
		b.logger.Warn("non-finite values left out of state",
			"endpoint", up.Endpoint,
			"path", path.String(),
			"resources", dropped,
		)
	}

	return &State{
		Endpoint: up.Endpoint,
		Object:   up.Object,
		Instance: up.Instance,
		Time:     time.Now().UTC(),
		Values:   values,
	}, nil
}

// finiteObject copies obj without NaN or infinite floats, which JSON
// cannot represent. Such resources are left out; elements of
// multi-instance resources become null so indexes are kept. The dotted
// names of removed values are returned.
func finiteObject(obj schema.Object, prefix string) (schema.Object, []string) {
	out := make(schema.Object, len(obj))
	var dropped []string
	for name, v := range obj {
		fv, ok, d := finiteValue(v, prefix+name)
		dropped = append(dropped, d...)
		if ok {
			out[name] = fv
		}
	}
	return out, dropped
}

func finiteValue(v any, name string) (any, bool, []string) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, false, []string{name}
		}
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false, []string{name}
		}
	case schema.Object:
		nested, dropped := finiteObject(x, name+".")
		return nested, true, dropped
	case map[string]any:
		nested, dropped := finiteObject(x, name+".")
		return map[string]any(nested), true, dropped
	case []any:
		out := make([]any, len(x))
		var dropped []string
		for i, elem := range x {
			fv, ok, d := finiteValue(elem, name+"."+strconv.Itoa(i))
			dropped = append(dropped, d...)
			if ok {
				out[i] = fv
			}
		}
		return out, true, dropped
	}
	return v, true, nil
}
