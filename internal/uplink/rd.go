package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/registration"
)

// Resource directory operations.
const (
	OpRegister   = "register"
	OpUpdate     = "update"
	OpDeregister = "deregister"
)

// CoAP response codes used in replies.
const (
	CodeCreated    = "2.01"
	CodeDeleted    = "2.02"
	CodeChanged    = "2.04"
	CodeBadRequest = "4.00"
	CodeNotFound   = "4.04"
	CodeInternal   = "5.00"
)

// ErrUnknownOperation is returned for resource directory topics other than
// register, update and deregister.
var ErrUnknownOperation = errors.New("uplink: unknown resource directory operation")

// Request is a resource directory request forwarded by the gateway.
type Request struct {
	// ID correlates the reply. Requests without an ID get no reply.
	ID string `json:"id,omitempty"`

	// Location is the registration handle, for update and deregister.
	Location string `json:"location,omitempty"`

	// Query is the CoAP URI query, e.g. "ep=sensor-1&lt=300&b=U".
	Query string `json:"query,omitempty"`

	// Links is the CoRE link-format payload listing object instances.
	Links string `json:"links,omitempty"`

	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	ID       string `json:"id"`
	Op       string `json:"op"`
	Code     string `json:"code"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleRD processes one resource directory message and publishes the
// reply. Directory errors are reported in the reply, not returned.
func (b *Bridge) HandleRD(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	op, err := mqtt.ParseRDRequest(topic)
	if err != nil {
		return err
	}
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decoding %s request: %w", op, err)
	}

	resp := b.Apply(ctx, op, req)
	if resp.Error != "" {
		b.logger.Debug("resource directory request failed", "op", op, "code", resp.Code, "error", resp.Error)
	}
	if req.ID == "" || b.client == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding %s response: %w", op, err)
	}
	return b.client.Publish(mqtt.Topics{}.RDResponse(req.ID), data, b.qos, false)
}

// Apply runs a resource directory operation against the directory.
func (b *Bridge) Apply(ctx context.Context, op string, req Request) Response {
	resp := Response{ID: req.ID, Op: op}

	var err error
	switch op {
	case OpRegister:
		var p registration.Params
		if p, err = b.params(req); err == nil {
			resp.Location, err = b.dir.Register(ctx, p)
			resp.Code = CodeCreated
		}
	case OpUpdate:
		var p registration.Params
		if p, err = b.params(req); err == nil {
			// The endpoint name is fixed by the registration.
			p.Endpoint = ""
			resp.Location, err = b.dir.Update(ctx, req.Location, p)
			resp.Code = CodeChanged
		}
	case OpDeregister:
		_, err = b.dir.Unregister(ctx, req.Location)
		resp.Location = req.Location
		resp.Code = CodeDeleted
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	if err != nil {
		resp.Code = errorCode(err)
		resp.Error = err.Error()
	}
	return resp
}

func (b *Bridge) params(req Request) (registration.Params, error) {
	q, err := url.ParseQuery(req.Query)
	if err != nil {
		return registration.Params{}, fmt.Errorf("%w: query: %w", registration.ErrInvalidParams, err)
	}
	p, err := registration.ParamsFromQuery(q)
	if err != nil {
		return registration.Params{}, err
	}
	p.Links = req.Links
	p.Address = req.Address
	p.Port = req.Port
	return p, nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, registration.ErrDeviceNotFound):
		return CodeNotFound
	case errors.Is(err, registration.ErrMissingEndpoint),
		errors.Is(err, registration.ErrInvalidParams),
		errors.Is(err, ErrUnknownOperation):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
