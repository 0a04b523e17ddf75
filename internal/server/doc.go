// Package server implements the HTTP and WebSocket surface of the chat room.
//
// The implementation is organized into specialized files for the hub, its
// clients, event routing, origin checks, page rendering, routing and HTTP
// handlers. The hub owns the registry of connected clients; nothing in the
// package is global, so tests can run several independent servers side by side.
package server
