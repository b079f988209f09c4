// Package principals provides [estateAuth.PrincipalStore] implementations
// for the estate-authd daemon: an in-memory directory for development and
// tests, and a Postgres directory over database/sql and lib/pq.
//
// The auth engine only reads principals and replaces credential hashes.
// Creating principals is the job of the surrounding platform; [Memory.Put]
// and [Postgres.Put] exist for seeding.
package principals
