// Package retry implements bounded exponential backoff with jitter.
// In the pipeline only the retrieval stage retries; everything else is
// terminal on first failure.
package retry
