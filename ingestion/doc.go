// Package ingestion provides the embedding batcher and the per-document
// pipeline orchestrator.
//
// The Pipeline runs the three ingestion stages in strict order per
// document: token-aware chunking, batched embedding generation with
// rate-limit backoff, and idempotent vector indexing. Status transitions
// (pending, chunking, embedding, indexing, ready, failed) are delivered
// to an optional callback so an external job record can track progress
// and attribute failures to a stage.
//
// Independent documents run concurrently on a worker pool. Within one
// run, embedding batches are strictly sequential and chunking is pure
// CPU work; no locks are taken anywhere in the pipeline.
package ingestion
