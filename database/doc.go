// Package database manages the Bun connection the repositories execute
// against: configuration, connection lifecycle, pooling, health checks,
// query logging hooks, startup table initialization, and classification of
// engine-level SQL errors.
package database
