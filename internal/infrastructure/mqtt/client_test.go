package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lwm2md-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker, skipping the test when none
// is running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("broker tests skipped in short mode")
	}
	cfg := testConfig()
	cfg.Broker.ClientID = "lwm2md-test-" + strings.ReplaceAll(t.Name(), "/", "-")
	c, err := Connect(cfg)
	if err != nil {
		t.Skipf("no MQTT broker at 127.0.0.1:1883: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestValidationWithoutConnection(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "publish empty topic", err: c.Publish("", nil, 1, false), want: ErrInvalidTopic},
		{name: "publish bad qos", err: c.Publish("t", nil, 3, false), want: ErrInvalidQoS},
		{name: "publish too large", err: c.Publish("t", make([]byte, maxPayloadSize+1), 1, false), want: ErrPublishFailed},
		{name: "publish disconnected", err: c.Publish("t", []byte("x"), 1, false), want: ErrNotConnected},
		{name: "subscribe empty topic", err: c.Subscribe("", 1, noop), want: ErrInvalidTopic},
		{name: "subscribe bad qos", err: c.Subscribe("t", 5, noop), want: ErrInvalidQoS},
		{name: "subscribe nil handler", err: c.Subscribe("t", 1, nil), want: ErrSubscribeFailed},
		{name: "subscribe disconnected", err: c.Subscribe("t", 1, noop), want: ErrNotConnected},
		{name: "health disconnected", err: c.HealthCheck(context.Background()), want: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscribe should not be tracked")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "a/b", payload: []byte("1")})
	if got != "a/b=1" {
		t.Errorf("handler received %q", got)
	}

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, fakeMessage{topic: "t"})
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || len(logger.errs) != 1 {
		t.Errorf("warns = %v, errs = %v; want one of each", logger.warns, logger.errs)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "user", Password: "pass"}
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "lwm2md-test" || opts.Username != "user" || opts.Password != "pass" {
		t.Errorf("identity = %q %q %q", opts.ClientID, opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect = %v %v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" || opts.TLSConfig == nil {
		t.Errorf("TLS options not applied: %v", opts.Servers)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "lwm2md-test")

	if !opts.WillEnabled || opts.WillTopic != "lwm2m/system/status" || !opts.WillRetained {
		t.Fatalf("will = %v %q %v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != "offline" || status.ClientID != "lwm2md-test" || status.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	c := connectOrSkip(t)

	topic := Topics{}.State("roundtrip-"+t.Name(), 3, 0)
	received := make(chan []byte, 1)
	if err := c.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}

	if err := c.Publish(topic, []byte(`{"manufacturer":"acme"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != `{"manufacturer":"acme"}` {
			t.Errorf("received %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
