package registration

import (
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"time"
)

// DefaultLifetime is the lease, in seconds, of a registration that does not
// declare one.
const DefaultLifetime int64 = 86400

// Entry is one endpoint registration.
type Entry struct {
	// Location is the opaque handle returned by Register. It is never reused.
	Location string `json:"location"`

	// Endpoint is the client's endpoint name, unique across live entries.
	Endpoint string `json:"endpoint"`

	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`

	// Lifetime is the lease duration in seconds.
	Lifetime int64 `json:"lifetime"`

	Version    string            `json:"version,omitempty"`
	Binding    string            `json:"binding,omitempty"`
	SMSNumber  string            `json:"sms_number,omitempty"`
	Links      string            `json:"links,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Renewed is set by an update and cleared by the sweep.
	Renewed bool `json:"renewed"`

	lastChecked time.Time
}

// DeepCopy returns a copy of e that shares no mutable state with it.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Attributes != nil {
		c.Attributes = maps.Clone(e.Attributes)
	}
	return &c
}

// LeaseDuration returns the lifetime as a duration.
func (e *Entry) LeaseDuration() time.Duration {
	return time.Duration(e.Lifetime) * time.Second
}

// Params carries the attributes of a register or update request. Zero
// values leave the existing attribute unchanged on update.
type Params struct {
	Endpoint string

	Address string
	Port    int

	// Lifetime is nil when the request does not declare one. Zero is a valid
	// lifetime, so a pointer distinguishes it from absence.
	Lifetime *int64

	Version    string
	Binding    string
	SMSNumber  string
	Links      string
	Attributes map[string]string
}

// Lifetime returns a pointer to seconds, for use in Params.
func Lifetime(seconds int64) *int64 {
	return &seconds
}

// ParamsFromQuery builds Params from registration query parameters
// (ep, lt, lwm2m, b, sms). Other parameters are kept as attributes.
func ParamsFromQuery(q url.Values) (Params, error) {
	var p Params
	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		v := values[0]
		switch key {
		case "ep":
			p.Endpoint = v
		case "lt":
			lt, err := strconv.ParseInt(v, 10, 64)
			if err != nil || lt < 0 {
				return Params{}, fmt.Errorf("%w: lifetime %q", ErrInvalidParams, v)
			}
			p.Lifetime = &lt
		case "lwm2m":
			p.Version = v
		case "b":
			p.Binding = v
		case "sms":
			p.SMSNumber = v
		default:
			if p.Attributes == nil {
				p.Attributes = make(map[string]string)
			}
			p.Attributes[key] = v
		}
	}
	return p, nil
}

// apply merges p into e. The endpoint name is identity and is not changed.
func (p Params) apply(e *Entry) {
	if p.Address != "" {
		e.Address = p.Address
	}
	if p.Port != 0 {
		e.Port = p.Port
	}
	if p.Lifetime != nil {
		e.Lifetime = *p.Lifetime
	}
	if p.Version != "" {
		e.Version = p.Version
	}
	if p.Binding != "" {
		e.Binding = p.Binding
	}
	if p.SMSNumber != "" {
		e.SMSNumber = p.SMSNumber
	}
	if p.Links != "" {
		e.Links = p.Links
	}
	if len(p.Attributes) > 0 {
		if e.Attributes == nil {
			e.Attributes = make(map[string]string, len(p.Attributes))
		}
		maps.Copy(e.Attributes, p.Attributes)
	}
}

// EventType identifies a lifecycle transition.
type EventType string

// Lifecycle events.
const (
	EventRegistered   EventType = "registered"
	EventUpdated      EventType = "updated"
	EventDeregistered EventType = "deregistered"
	EventExpired      EventType = "expired"
)

// Event is delivered to subscribers after each directory mutation.
type Event struct {
	Type     EventType `json:"type"`
	Location string    `json:"location"`
	Endpoint string    `json:"endpoint"`
	Time     time.Time `json:"time"`

	// Entry is a copy of the registration after the mutation, or the removed
	// registration for deregistered and expired events.
	Entry *Entry `json:"entry,omitempty"`
}
