// Package server implements the WebSocket transport of the chat router.
//
// The implementation is organized into specialized files for configuration, hub
// management, clients, routing, and HTTP handlers. Inbound frames are decoded
// into envelopes and handed to a Dispatcher; outbound frames reach clients
// through the multicast fabric, for which each Client is an endpoint.
package server
