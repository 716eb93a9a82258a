// Package domain defines the core types and consumer-side interfaces of the
// vote and notification core.
//
// Files are concept-oriented (vote.go, entity.go, notification.go, session.go, errors.go).
// No implementation code, only contracts, so adapters and services can depend
// on it without importing each other.
package domain
