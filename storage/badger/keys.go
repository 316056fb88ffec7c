package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	collectionPrefix = "col"
	pointPrefix      = "pnt"
	manifestPrefix   = "man"
)

// makeCollectionKey generates a key for a collection's configuration.
func makeCollectionKey(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionPrefix, collection))
}

// makePointKey generates a composite key for a point.
// Format: prefix:collection:documentID:chunkIndex
func makePointKey(collection, documentID string, chunkIndex int) []byte {
	prefix := makeDocumentPointPrefix(collection, documentID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows chunk index
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkIndex))
	return buf
}

// makeDocumentPointPrefix generates the common prefix of all point keys
// belonging to one document, used for range scans.
func makeDocumentPointPrefix(collection, documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", pointPrefix, collection, documentID))
}

// makeManifestKey generates a key for a document's manifest.
func makeManifestKey(collection, documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", manifestPrefix, collection, documentID))
}
