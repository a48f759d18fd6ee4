// Package server wires the AGI Cosmic runtime: storage, interpreter, command
// pipeline, the HTTP API, and the gRPC health endpoint.
package server
