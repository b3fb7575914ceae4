// Package types defines the shared data model of the service: queries,
// pipeline results, and the unified error type used across components.
package types
