// Package agents defines the contract for the model-backed text
// capabilities the pipeline composes: generate, verify, reform, and
// translate. The orchestration core depends only on the Client
// interface; the llm subpackage provides the HTTP-backed implementation.
package agents
