// Package retrieval defines the contract for the context retrieval
// collaborator and ships an in-memory scored store used in development
// and tests. Embedding is pluggable behind the Embedder interface.
package retrieval
