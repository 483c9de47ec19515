// Package api exposes the bridge's HTTP surface: the enterprise login
// endpoint backed by the token security-validation pipeline, and the
// security audit summary endpoint. Rejection reasons never leak to
// callers; every refused login reads the same from the outside.
package api
