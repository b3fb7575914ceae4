// Package consensus converts a verification outcome into one of
// approve, reform, reject, or human-review. Evaluate is a pure
// function: identical inputs always yield the identical decision.
package consensus
