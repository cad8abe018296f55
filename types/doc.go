// Package types holds the shared contracts used across the service:
// the structured error type and the unified error codes. It is the
// lowest-level package and depends on nothing else in the module, so
// every other package can import it without cycles.
package types
