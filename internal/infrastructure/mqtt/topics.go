package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every lwm2md topic.
const TopicPrefix = "lwm2m"

// Topics provides builders for lwm2md MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.RegistrationEvent("sensor-1", "registered")
//	// Returns: "lwm2m/registration/sensor-1/registered"
type Topics struct{}

// RegistrationEvent returns the topic for a registration lifecycle event.
func (Topics) RegistrationEvent(endpoint, event string) string {
	return fmt.Sprintf("%s/registration/%s/%s", TopicPrefix, Segment(endpoint), event)
}

// AllRegistrationEvents matches every registration event.
func (Topics) AllRegistrationEvents() string {
	return TopicPrefix + "/registration/#"
}

// Uplink returns the topic on which the gateway publishes an encoded
// payload for one object instance. format is a short format name such as
// "tlv" or "json".
func (Topics) Uplink(endpoint, format string, object, instance uint16) string {
	return fmt.Sprintf("%s/uplink/%s/%s/%d/%d", TopicPrefix, Segment(endpoint), format, object, instance)
}

// AllUplinks matches every uplink topic.
func (Topics) AllUplinks() string {
	return TopicPrefix + "/uplink/+/+/+/+"
}

// State returns the topic for decoded instance state.
func (Topics) State(endpoint string, object, instance uint16) string {
	return fmt.Sprintf("%s/state/%s/%d/%d", TopicPrefix, Segment(endpoint), object, instance)
}

// RDRequest returns the topic for a resource directory request: "register",
// "update" or "deregister".
func (Topics) RDRequest(op string) string {
	return fmt.Sprintf("%s/rd/%s", TopicPrefix, op)
}

// AllRDRequests matches every resource directory request.
func (Topics) AllRDRequests() string {
	return TopicPrefix + "/rd/+"
}

// RDResponse returns the topic on which the reply to a resource directory
// request with the given correlation ID is published.
func (Topics) RDResponse(requestID string) string {
	return fmt.Sprintf("%s/rd-response/%s", TopicPrefix, Segment(requestID))
}

// SystemStatus returns the topic for lwm2md online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// UplinkTopic is a parsed uplink topic.
type UplinkTopic struct {
	Endpoint string
	Format   string
	Object   uint16
	Instance uint16
}

// ParseUplink parses "lwm2m/uplink/{endpoint}/{format}/{object}/{instance}".
func ParseUplink(topic string) (UplinkTopic, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 6 || parts[0] != TopicPrefix || parts[1] != "uplink" {
		return UplinkTopic{}, fmt.Errorf("%w: not an uplink topic: %q", ErrInvalidTopic, topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return UplinkTopic{}, fmt.Errorf("%w: empty segment in %q", ErrInvalidTopic, topic)
	}
	object, err := strconv.ParseUint(parts[4], 10, 16)
	if err != nil {
		return UplinkTopic{}, fmt.Errorf("%w: object id in %q", ErrInvalidTopic, topic)
	}
	instance, err := strconv.ParseUint(parts[5], 10, 16)
	if err != nil {
		return UplinkTopic{}, fmt.Errorf("%w: instance id in %q", ErrInvalidTopic, topic)
	}
	return UplinkTopic{
		Endpoint: parts[2],
		Format:   parts[3],
		Object:   uint16(object),
		Instance: uint16(instance),
	}, nil
}

// ParseRDRequest returns the operation of a "lwm2m/rd/{op}" topic.
func ParseRDRequest(topic string) (string, error) {
	op, ok := strings.CutPrefix(topic, TopicPrefix+"/rd/")
	if !ok || op == "" || strings.Contains(op, "/") {
		return "", fmt.Errorf("%w: not a resource directory topic: %q", ErrInvalidTopic, topic)
	}
	return op, nil
}

var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Segment makes s safe for use as a single topic level by replacing the
// level separator and wildcard characters.
func Segment(s string) string {
	return segmentReplacer.Replace(s)
}
