// Package observability provides Prometheus metrics for the authentication
// pipeline and health probes over the bridge's backing stores.
package observability
