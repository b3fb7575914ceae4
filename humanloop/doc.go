// Package humanloop implements the human-in-the-loop escalation path:
// trigger evaluation over configurable keyword tables, the validation
// request queue with priorities and expiry, and pluggable persistence.
package humanloop
