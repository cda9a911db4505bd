// Package influxdb stores lwm2md time series in InfluxDB v2.
//
// It wraps influxdb-client-go with connection management, health checks
// and two measurements:
//   - registration_events: one point per directory lifecycle event, tagged
//     with endpoint and event type
//   - resource_values: one point per decoded numeric, boolean or string
//     resource value, tagged with endpoint, object, instance and resource
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteResourceValue(influxdb.ResourceValue{
//	    Endpoint: "sensor-1", Object: 3303, Resource: 5700,
//	    Name: "sensorValue", Index: -1, Value: 21.5,
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched per the batch_size and flush_interval settings; failures are
// reported asynchronously through SetOnError.
package influxdb
