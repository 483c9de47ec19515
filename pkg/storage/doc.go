// Package storage constructs the two backing stores of the bridge: the
// shared Redis store that holds all mutable security state (nonces, rate
// windows, failure ledgers, audit partitions) and the PostgreSQL user/tenant
// repository consumed by pkg/provision.
//
// Bridge processes are stateless; every instance points at the same Redis
// store so replay and rate-limit decisions are globally consistent.
package storage
