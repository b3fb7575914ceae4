// Package llm implements the agents.Client contract against an
// OpenAI-compatible chat-completions endpoint.
package llm
