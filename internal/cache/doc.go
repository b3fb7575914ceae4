// Package cache provides the result cache keyed by normalized query
// hash. It ships an in-memory store with lazy expiry and a
// redis-backed store for multi-process deployments.
package cache
