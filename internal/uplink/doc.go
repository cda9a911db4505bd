// Package uplink bridges an external CoAP gateway to the LWM2M data plane
// over MQTT.
//
// The gateway terminates CoAP and forwards two kinds of traffic:
//
//   - Resource directory requests on lwm2m/rd/{register|update|deregister}.
//     The payload is a JSON Request carrying the CoAP URI query, the
//     link-format body and the peer address. The reply is published to
//     lwm2m/rd-response/{id} when the request has an id.
//   - Encoded object instances on
//     lwm2m/uplink/{endpoint}/{format}/{object}/{instance}. The bridge
//     checks the endpoint is registered, decodes the payload against the
//     object schema, records telemetry and publishes the decoded values,
//     retained, to lwm2m/state/{endpoint}/{object}/{instance}.
//
// Payloads from unregistered endpoints are dropped and logged at debug
// level.
package uplink
