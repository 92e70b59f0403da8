// Package server implements the HTTP server and handlers for the image
// upload gateway. It wires together the routes, the storage backend and
// the middleware chain, and provides lifecycle helpers used by tests and
// the production binary.
package server
