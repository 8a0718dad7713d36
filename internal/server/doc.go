// Package server provides the HTTP API for yardwatch.
//
// This package is internal to yardwatch and handles all HTTP concerns:
//
//   - REST API: view snapshots, filtered items, filter state, suspend gate,
//     refresh/reload and capped selections under "/api/views"
//   - Server-Sent Events: region changes at "/api/sse"
//   - WebSocket: region changes plus gate commands at "/api/ws"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
