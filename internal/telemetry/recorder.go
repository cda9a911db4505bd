// Package telemetry turns decoded LWM2M object instances into time-series
// points.
//
// Only numeric and boolean resources are recorded, and NaN or infinite
// floats are skipped. Multi-instance resources
// produce one point per element, tagged with its index, and ObjectLink
// resources are flattened so that each nested value is tagged with a dotted
// name ("link.child").
package telemetry

import (
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// ValueWriter receives resource values. *influxdb.Client implements it.
type ValueWriter interface {
	WriteResourceValue(v influxdb.ResourceValue)
}

// Recorder writes the numeric and boolean values of decoded instances.
//
// A Recorder is safe for concurrent use if its writer is.
type Recorder struct {
	writer ValueWriter
	now    func() time.Time
}

// NewRecorder returns a recorder writing to w.
func NewRecorder(w ValueWriter) *Recorder {
	return &Recorder{writer: w, now: time.Now}
}

// Record writes one point per recordable value in obj and returns the
// number of points written. Resources not declared by s are ignored.
func (r *Recorder) Record(endpoint string, object, instance uint16, obj schema.Object, s *schema.Schema) int {
	if r == nil || r.writer == nil || s == nil {
		return 0
	}
	base := influxdb.ResourceValue{
		Endpoint: endpoint,
		Object:   object,
		Instance: instance,
		Time:     r.now(),
	}
	return r.record(base, "", obj, s)
}

func (r *Recorder) record(base influxdb.ResourceValue, prefix string, obj schema.Object, s *schema.Schema) int {
	n := 0
	for _, res := range s.Resources() {
		val, ok := obj[res.Name]
		if !ok || val == nil {
			continue
		}

		point := base
		point.Resource = res.WireID()
		point.Name = prefix + res.Name
		point.Index = -1

		if res.Type.Array {
			elems, ok := schema.Elements(val)
			if !ok {
				continue
			}
			for i, elem := range elems {
				point.Index = i
				n += r.recordScalar(point, res, elem)
			}
			continue
		}
		n += r.recordScalar(point, res, val)
	}
	return n
}

func (r *Recorder) recordScalar(point influxdb.ResourceValue, res schema.Resource, val any) int {
	switch res.Type.Kind {
	case schema.KindInteger:
		i, ok := schema.AsInt64(val)
		if !ok {
			return 0
		}
		point.Value = i
	case schema.KindFloat:
		f, ok := schema.AsFloat64(val)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		point.Value = f
	case schema.KindBoolean:
		b, ok := val.(bool)
		if !ok {
			return 0
		}
		point.Value = b
	case schema.KindObjectLink:
		nested, ok := schema.AsObject(val)
		if !ok || res.Schema == nil {
			return 0
		}
		prefix := point.Name
		if point.Index >= 0 {
			prefix += "." + strconv.Itoa(point.Index)
		}
		return r.record(point, prefix+".", nested, res.Schema)
	default:
		return 0
	}
	r.writer.WriteResourceValue(point)
	return 1
}
