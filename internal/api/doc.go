// Package api implements the lwm2md HTTP admin API and WebSocket event
// stream.
//
// Routes under /api/v1:
//
//	GET    /health                     component health, 503 when degraded
//	GET    /metrics                    runtime, directory and pool statistics
//	GET    /registrations              live registrations by endpoint name
//	GET    /registrations/{location}   one registration
//	DELETE /registrations/{location}   operator removal (admin)
//	GET    /endpoints/{name}           registration of an endpoint name
//	GET    /objects                    object catalog
//	GET    /objects/{id}               object definition with resources
//	POST   /objects/{id}/decode        encoded payload to JSON values
//	POST   /objects/{id}/encode        JSON values to an encoded payload
//	GET    /ws                         lifecycle event stream (admin, viewer)
//
// Gateways that cannot use MQTT may register over HTTP (admin, gateway):
//
//	POST   /rd?ep=...&lt=...           register, 201 with Location /rd/{location}
//	POST   /rd/{location}?lt=...       update, 204
//	DELETE /rd/{location}              deregister, 204
//
// Routes marked with roles need an HS256 bearer token signed with
// security.jwt.secret and carrying one of those roles. The WebSocket
// route also takes the token as ?access_token=. Missing or invalid tokens
// get 401, a valid token with the wrong role gets 403.
//
// Errors are JSON {"status","code","message"}. Unknown registrations and
// objects map to 404, malformed payloads and validation failures to 400,
// and unsupported content formats to 415.
//
// WebSocket clients subscribe to channels such as "registration.expired"
// or "registration.*".
package api
