// Package http exposes the AGI Cosmic JSON API: account registration and
// login, the country document, and the command endpoint that drives the
// command pipeline.
package http
