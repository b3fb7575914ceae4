// Package workflow drives one query through the ordered pipeline
// states, recording every transition. The transition table is closed:
// any edge not listed fails with INVALID_TRANSITION and leaves the
// instance unchanged.
package workflow
