package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRegistrationEvents = "registration_events"
	MeasurementResourceValues     = "resource_values"
)

// RegistrationEvent is one directory lifecycle event.
type RegistrationEvent struct {
	Endpoint string
	Event    string
	Location string
	Lifetime int64
	Binding  string
	Time     time.Time
}

// ResourceValue is one decoded resource value. Index is the array index,
// or -1 for single-valued resources. Value is a float64, int64, bool or
// string.
type ResourceValue struct {
	Endpoint string
	Object   uint16
	Instance uint16
	Resource uint16
	Name     string
	Index    int
	Value    any
	Time     time.Time
}

// WriteRegistrationEvent queues a registration_events point.
func (c *Client) WriteRegistrationEvent(ev RegistrationEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(registrationEventPoint(ev))
}

// WriteResourceValue queues a resource_values point.
func (c *Client) WriteResourceValue(v ResourceValue) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(resourceValuePoint(v))
}

// WritePoint queues a point with custom tags and fields. A zero ts means
// now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

func registrationEventPoint(ev RegistrationEvent) *write.Point {
	tags := map[string]string{
		"endpoint": ev.Endpoint,
		"event":    ev.Event,
	}
	if ev.Binding != "" {
		tags["binding"] = ev.Binding
	}
	return write.NewPoint(
		MeasurementRegistrationEvents,
		tags,
		map[string]any{
			"location": ev.Location,
			"lifetime": ev.Lifetime,
		},
		pointTime(ev.Time),
	)
}

func resourceValuePoint(v ResourceValue) *write.Point {
	tags := map[string]string{
		"endpoint":    v.Endpoint,
		"object":      strconv.Itoa(int(v.Object)),
		"instance":    strconv.Itoa(int(v.Instance)),
		"resource":    v.Name,
		"resource_id": strconv.Itoa(int(v.Resource)),
	}
	if v.Index >= 0 {
		tags["index"] = strconv.Itoa(v.Index)
	}
	return write.NewPoint(
		MeasurementResourceValues,
		tags,
		map[string]any{"value": v.Value},
		pointTime(v.Time),
	)
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
