// Package handlers contains the HTTP handlers for the analysis and
// planning API, plus the shared response envelope they all write.
package handlers
