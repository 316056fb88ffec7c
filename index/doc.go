// Package index persists chunk embeddings as idempotent vector-store
// points and reconciles stale points after document re-upload.
//
// All writes are keyed by the deterministic point id
// "{document_id}_{chunk_index}", so repeated indexing of the same content
// overwrites in place and never duplicates. Re-upload follows an
// upsert-before-delete discipline: the replacement content is fully
// indexed first, then orphan chunks from a previously longer version are
// removed, so retrieval never observes a document with zero chunks.
package index
