/*
Package main is the slicewise executable: the HTTP analysis and planning
service plus CLI subcommands.

Subcommands:

  - serve    — start the HTTP API and metrics servers
  - analyze  — run mesh analysis on STL files from the command line
  - index    — chunk, embed, and store markdown guidance documents
  - health   — probe a running server's /health endpoint
  - version  — print build information

The serve command wires the middleware chain (Recovery, RequestID,
SecurityHeaders, RequestLogger, MetricsMiddleware, OTelTracing, CORS,
per-IP RateLimiter, APIKeyAuth) around the handlers in api/handlers and
manages graceful shutdown for both listeners. Version, BuildTime, and
GitCommit are injected at build time via ldflags.
*/
package main
