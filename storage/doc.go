// Package storage defines the vector-store contract the indexing layer
// writes through, plus serialization helpers for stored records.
//
// The VectorStore interface models the operations the pipeline needs from
// any vector database: collection bootstrap, idempotent point upserts,
// filtered deletes by document and chunk index, and document manifests.
// The storage/badger subpackage provides a durable local implementation;
// remote vector databases can be wired in behind the same interface.
package storage
