// Package transport implements the REST side of the controller API: request
// building, bearer authentication and typed HTTP errors. The rest of the
// library consumes it through the API interface so tests and the fake
// controller can stand in for a real server.
package transport

import "context"

// API is the controller's REST surface. Paths are relative to the API base
// (e.g. "labs/<id>/topology") and may carry a query string, such as the flag
// that excludes configuration text from topology fetches. out, when non-nil,
// receives the decoded JSON response body.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	Patch(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
	Delete(ctx context.Context, path string) error
}
