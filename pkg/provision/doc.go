// Package provision creates and maintains local accounts for verified
// enterprise identities. Accounts are provisioned just-in-time on first
// login: an existing account with the same email address is adopted,
// otherwise a fresh account is created with its own personal tenant space.
// Subsequent logins refresh profile fields and reconcile the tenant role
// against the current enterprise role mapping.
package provision
