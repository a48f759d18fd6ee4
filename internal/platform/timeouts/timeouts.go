// Package timeouts defines shared timeout constants used across the server.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Interpreter is the default bound on a single interpreter call. Exceeding it
// is treated like any other interpreter failure.
const Interpreter = 20 * time.Second

// HealthProbe caps a single gRPC health check round trip.
const HealthProbe = time.Second
