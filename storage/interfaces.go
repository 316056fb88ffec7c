package storage

import (
	"context"

	"github.com/poiesic/docindex/core"
)

// Distance identifies the similarity metric a collection is created with.
type Distance string

const (
	// DistanceCosine is cosine similarity, the default for text embeddings.
	DistanceCosine Distance = "cosine"
	// DistanceDot is dot-product similarity.
	DistanceDot Distance = "dot"
	// DistanceEuclid is euclidean distance.
	DistanceEuclid Distance = "euclid"
)

// VectorStore is the contract the indexer writes through. Implementations
// must be thread-safe: independent documents are indexed concurrently,
// and upserts keyed by the same point id must converge last-write-wins.
type VectorStore interface {
	// EnsureCollection creates the named collection with the given vector
	// size and distance metric if it does not exist. Returns
	// ErrVectorSizeMismatch if the collection exists with a different
	// vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int, distance Distance) error

	// UpsertPoints writes all points in a single acknowledged call.
	// Writes keyed by an existing point id overwrite in place.
	UpsertPoints(ctx context.Context, collection string, points []*core.Point) error

	// GetPoint retrieves a single point by id.
	// Returns ErrNotFound if the point doesn't exist.
	GetPoint(ctx context.Context, collection, id string) (*core.Point, error)

	// DeleteChunksAfter removes the document's points with chunk index
	// greater than maxChunkIndex. Returns the number of points deleted.
	DeleteChunksAfter(ctx context.Context, collection, documentID string, maxChunkIndex int) (int, error)

	// DeleteDocumentPoints removes every point of the document along with
	// its manifest. Returns the number of points deleted.
	DeleteDocumentPoints(ctx context.Context, collection, documentID string) (int, error)

	// CountDocumentPoints returns the number of points stored for the
	// document.
	CountDocumentPoints(ctx context.Context, collection, documentID string) (int, error)

	// PutManifest records the indexed state of a document.
	PutManifest(ctx context.Context, collection string, manifest *core.DocumentManifest) error

	// GetManifest retrieves the indexed state of a document.
	// Returns ErrNotFound if no manifest exists.
	GetManifest(ctx context.Context, collection, documentID string) (*core.DocumentManifest, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
