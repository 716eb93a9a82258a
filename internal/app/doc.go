// Package app provides the application service layer.
//
// Orchestrates use cases: casting votes, reading scores, entity lifecycle, listing and
// acknowledging notifications, and wiring realtime sessions into presence.
// Sits between transport handlers and domain repositories. Depends on domain interfaces, not concrete implementations.
package app
