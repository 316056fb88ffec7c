package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/storage"
)

// Store is a BadgerDB-backed vector store. Point keys embed the chunk
// index in BigEndian form, so all points of a document sort by chunk
// index and orphan cleanup is a single range scan.
type Store struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// NewVectorStore creates a vector store on top of an open backend.
// Closing the store closes the backend.
func NewVectorStore(backend *Backend) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}, nil
}

// EnsureCollection creates the collection if missing. An existing
// collection with a different vector size is an error; the distance
// metric of an existing collection is left as configured.
func (s *Store) EnsureCollection(ctx context.Context, collection string, vectorSize int, distance storage.Distance) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	key := makeCollectionKey(collection)
	return s.backend.Update(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err == nil {
			var existing int
			err = item.Value(func(val []byte) error {
				existing, _, err = unmarshalCollection(val)
				return err
			})
			if err != nil {
				return err
			}
			if existing != vectorSize {
				return fmt.Errorf("%w: collection %s has size %d, requested %d",
					storage.ErrVectorSizeMismatch, collection, existing, vectorSize)
			}
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		s.logger.Info("creating collection",
			"collection", collection, "vectorSize", vectorSize, "distance", distance)
		return tx.Set(key, marshalCollection(vectorSize, distance))
	})
}

// UpsertPoints writes all points in one committed transaction. Existing
// points with the same id are overwritten in place.
func (s *Store) UpsertPoints(ctx context.Context, collection string, points []*core.Point) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if len(points) == 0 {
		return nil
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		vectorSize, err := collectionSize(tx, collection)
		if err != nil {
			return err
		}
		for _, point := range points {
			if err := core.ValidatePoint(point); err != nil {
				return err
			}
			if len(point.Vector) != vectorSize {
				return fmt.Errorf("%w: point %s has %d dimensions, collection %s expects %d",
					storage.ErrVectorSizeMismatch, point.ID, len(point.Vector), collection, vectorSize)
			}
			key := makePointKey(collection, point.Payload.DocumentID, point.Payload.ChunkIndex)
			if err := tx.Set(key, storage.MarshalPoint(point)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPoint retrieves a single point by its deterministic id.
func (s *Store) GetPoint(ctx context.Context, collection, id string) (*core.Point, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	documentID, chunkIndex, err := splitPointID(id)
	if err != nil {
		return nil, err
	}

	var point *core.Point
	err = s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makePointKey(collection, documentID, chunkIndex))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: point %s", storage.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			point, err = storage.UnmarshalPoint(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return point, nil
}

// DeleteChunksAfter removes the document's points with chunk index
// greater than maxChunkIndex.
func (s *Store) DeleteChunksAfter(ctx context.Context, collection, documentID string, maxChunkIndex int) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	deleted := 0
	err := s.backend.Update(func(tx *badger.Txn) error {
		prefix := makeDocumentPointPrefix(collection, documentID)
		start := makePointKey(collection, documentID, maxChunkIndex+1)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var stale [][]byte
		for iter.Seek(start); iter.Valid(); iter.Next() {
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteDocumentPoints removes every point of the document and its
// manifest.
func (s *Store) DeleteDocumentPoints(ctx context.Context, collection, documentID string) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	deleted := 0
	err := s.backend.Update(func(tx *badger.Txn) error {
		prefix := makeDocumentPointPrefix(collection, documentID)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)

		err := tx.Delete(makeManifestKey(collection, documentID))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountDocumentPoints returns the number of points stored for the document.
func (s *Store) CountDocumentPoints(ctx context.Context, collection, documentID string) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := s.backend.View(func(tx *badger.Txn) error {
		prefix := makeDocumentPointPrefix(collection, documentID)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PutManifest records the indexed state of a document.
func (s *Store) PutManifest(ctx context.Context, collection string, manifest *core.DocumentManifest) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		key := makeManifestKey(collection, manifest.DocumentID)
		return tx.Set(key, storage.MarshalManifest(manifest))
	})
}

// GetManifest retrieves the indexed state of a document.
func (s *Store) GetManifest(ctx context.Context, collection, documentID string) (*core.DocumentManifest, error) {
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var manifest *core.DocumentManifest
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeManifestKey(collection, documentID))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: manifest for document %s", storage.ErrNotFound, documentID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			manifest, err = storage.UnmarshalManifest(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// Close closes the store and its backend.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// collectionSize reads the configured vector size of a collection within
// an open transaction.
func collectionSize(tx *badger.Txn, collection string) (int, error) {
	item, err := tx.Get(makeCollectionKey(collection))
	if err == badger.ErrKeyNotFound {
		return 0, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
	}
	if err != nil {
		return 0, err
	}
	var size int
	err = item.Value(func(val []byte) error {
		size, _, err = unmarshalCollection(val)
		return err
	})
	return size, err
}

// splitPointID parses "{documentID}_{chunkIndex}". Document ids may
// themselves contain underscores, so the split is at the last one.
func splitPointID(id string) (documentID string, chunkIndex int, err error) {
	sep := strings.LastIndex(id, "_")
	if sep <= 0 || sep == len(id)-1 {
		return "", 0, fmt.Errorf("malformed point id %q", id)
	}
	chunkIndex, err = strconv.Atoi(id[sep+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed point id %q: %w", id, err)
	}
	return id[:sep], chunkIndex, nil
}

func marshalCollection(vectorSize int, distance storage.Distance) []byte {
	metric := string(distance)
	buf := make([]byte, varint.Int.Size(vectorSize)+ord.String.Size(metric))
	n := varint.Int.Marshal(vectorSize, buf)
	ord.String.Marshal(metric, buf[n:])
	return buf
}

func unmarshalCollection(data []byte) (vectorSize int, distance storage.Distance, err error) {
	vectorSize, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return 0, "", err
	}
	metric, _, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return 0, "", err
	}
	return vectorSize, storage.Distance(metric), nil
}
