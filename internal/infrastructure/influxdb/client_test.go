package influxdb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
)

// testConfig returns a configuration for a local InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "lwm2m-dev-token",
		Org:           "lwm2m",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("InfluxDB tests skipped in short mode")
	}
	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Second)
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestZeroClient(t *testing.T) {
	c := &Client{}

	if c.IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Writes on a disconnected client are dropped without panicking.
	c.Flush()
	c.WriteRegistrationEvent(RegistrationEvent{Endpoint: "ep"})
	c.WriteResourceValue(ResourceValue{Endpoint: "ep", Index: -1, Value: 1.0})
	c.WritePoint("m", nil, map[string]any{"v": 1}, time.Time{})
}

func TestRegistrationEventPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	line := lineProtocol(registrationEventPoint(RegistrationEvent{
		Endpoint: "sensor-1",
		Event:    "registered",
		Location: "abc",
		Lifetime: 300,
		Binding:  "U",
		Time:     ts,
	}))

	want := `registration_events,binding=U,endpoint=sensor-1,event=registered lifetime=300i,location="abc" 1700000000`
	if strings.TrimSpace(line) != want {
		t.Errorf("line protocol = %q\nwant %q", line, want)
	}
}

func TestResourceValuePoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	tests := []struct {
		name  string
		value ResourceValue
		want  []string
	}{
		{
			name: "float",
			value: ResourceValue{
				Endpoint: "sensor-1", Object: 3303, Instance: 0, Resource: 5700,
				Name: "sensorValue", Index: -1, Value: 21.5, Time: ts,
			},
			want: []string{
				"resource_values,",
				"endpoint=sensor-1",
				"object=3303",
				"resource=sensorValue",
				"resource_id=5700",
				" value=21.5 1700000000",
			},
		},
		{
			name: "array index",
			value: ResourceValue{
				Endpoint: "dev", Object: 3, Instance: 0, Resource: 11,
				Name: "errorCode", Index: 2, Value: int64(4), Time: ts,
			},
			want: []string{"index=2", " value=4i "},
		},
		{
			name: "boolean",
			value: ResourceValue{
				Endpoint: "lamp", Object: 3311, Instance: 1, Resource: 5850,
				Name: "onOff", Index: -1, Value: true, Time: ts,
			},
			want: []string{"instance=1", " value=true "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineProtocol(resourceValuePoint(tt.value))
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line protocol %q missing %q", line, w)
				}
			}
			if tt.value.Index < 0 && strings.Contains(line, "index=") {
				t.Errorf("line protocol %q has an index tag", line)
			}
		})
	}
}

func TestWriteAndFlush(t *testing.T) {
	client := connectOrSkip(t)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteRegistrationEvent(RegistrationEvent{Endpoint: "test-ep", Event: "registered", Location: "l1", Lifetime: 60})
	client.WriteResourceValue(ResourceValue{Endpoint: "test-ep", Object: 3303, Resource: 5700, Name: "sensorValue", Index: -1, Value: 20.0})
	client.Flush()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("write error = %v, want ErrWriteFailed", err)
		}
		t.Logf("write rejected by server: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
