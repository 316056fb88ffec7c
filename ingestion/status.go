package ingestion

import "github.com/poiesic/docindex/core"

// Status is the ingestion state of a document. The external job record
// owns the durable transitions; the pipeline drives them through the
// StatusFunc callback.
//
// Transitions: Pending → Chunking → Embedding → Indexing → Ready, with
// Failed reachable from any of the three active states. There is no
// partial-ready state; a document is either fully indexed or not ready.
type Status int

const (
	// StatusPending indicates the document is queued and untouched.
	StatusPending Status = iota
	// StatusChunking indicates text splitting is in progress.
	StatusChunking
	// StatusEmbedding indicates embedding generation is in progress.
	StatusEmbedding
	// StatusIndexing indicates vector-store writes are in progress.
	StatusIndexing
	// StatusReady indicates the document is fully indexed.
	StatusReady
	// StatusFailed indicates ingestion aborted; the stage tag attributes
	// the failure.
	StatusFailed
)

// String returns the status tag used in job records and logs.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusChunking:
		return "chunking"
	case StatusEmbedding:
		return "embedding"
	case StatusIndexing:
		return "indexing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusFunc receives a document's status transitions. stage and err are
// only meaningful for StatusFailed. Callbacks run on the ingestion
// goroutine and must return quickly.
type StatusFunc func(documentID string, status Status, stage core.Stage, err error)
