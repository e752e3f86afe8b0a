// Package internal documents the outreach portal server internals.
//
// The internal tree is organized by responsibility:
// - api: router, middleware, handlers, templates and error responses
// - domain: business rules for users, events, donations, surveys and milestones
// - storage: the list query builder and the Postgres repositories (pgx)
// - auth, audit, config, metrics, telemetry, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
