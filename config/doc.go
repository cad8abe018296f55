// Package config loads the service configuration from defaults, an
// optional YAML file, and environment variable overrides, in that
// order of precedence. Analysis tolerances live here so operators can
// tune them without a rebuild.
package config
