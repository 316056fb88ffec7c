package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-composed MUS serializers for the records the storage layer
// persists. The stored set is small enough that composing field
// serializers directly is clearer than generated code.

var vectorMUS = ord.NewSliceSer[float32](varint.Float32)

// PointMUS serializes Point values.
var PointMUS = pointMUS{}

var _ mus.Serializer[Point] = PointMUS

type pointMUS struct{}

func (pointMUS) Marshal(p Point, bs []byte) (n int) {
	n = ord.String.Marshal(p.ID, bs)
	n += vectorMUS.Marshal(p.Vector, bs[n:])
	n += ord.String.Marshal(p.Payload.DocumentID, bs[n:])
	n += ord.String.Marshal(p.Payload.DocumentName, bs[n:])
	n += ord.String.Marshal(p.Payload.ChunkText, bs[n:])
	n += varint.Int.Marshal(p.Payload.CharStart, bs[n:])
	n += varint.Int.Marshal(p.Payload.CharEnd, bs[n:])
	n += varint.Int.Marshal(p.Payload.ChunkIndex, bs[n:])
	n += varint.Int.Marshal(p.Payload.PageNumber, bs[n:])
	n += ord.String.Marshal(p.Payload.SectionHeader, bs[n:])
	return n
}

func (pointMUS) Unmarshal(bs []byte) (p Point, n int, err error) {
	var n1 int
	p.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	p.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.DocumentID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.DocumentName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.ChunkText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.CharStart, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.CharEnd, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.Payload.SectionHeader, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (pointMUS) Size(p Point) (size int) {
	size = ord.String.Size(p.ID)
	size += vectorMUS.Size(p.Vector)
	size += ord.String.Size(p.Payload.DocumentID)
	size += ord.String.Size(p.Payload.DocumentName)
	size += ord.String.Size(p.Payload.ChunkText)
	size += varint.Int.Size(p.Payload.CharStart)
	size += varint.Int.Size(p.Payload.CharEnd)
	size += varint.Int.Size(p.Payload.ChunkIndex)
	size += varint.Int.Size(p.Payload.PageNumber)
	size += ord.String.Size(p.Payload.SectionHeader)
	return size
}

func (pointMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	n1, err = vectorMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	for i := 0; i < 4; i++ {
		n1, err = varint.Int.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	return
}

// DocumentManifestMUS serializes DocumentManifest values. IndexedAt is
// stored as Unix microseconds.
var DocumentManifestMUS = documentManifestMUS{}

var _ mus.Serializer[DocumentManifest] = DocumentManifestMUS

type documentManifestMUS struct{}

func (documentManifestMUS) Marshal(m DocumentManifest, bs []byte) (n int) {
	n = ord.String.Marshal(m.DocumentID, bs)
	n += ord.String.Marshal(m.Fingerprint, bs[n:])
	n += varint.Int.Marshal(m.ChunkCount, bs[n:])
	n += varint.Int.Marshal(m.VectorSize, bs[n:])
	n += varint.Int64.Marshal(m.IndexedAt.UnixMicro(), bs[n:])
	return n
}

func (documentManifestMUS) Unmarshal(bs []byte) (m DocumentManifest, n int, err error) {
	var n1 int
	m.DocumentID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	m.Fingerprint, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.VectorSize, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.IndexedAt = time.UnixMicro(micros).UTC()
	return
}

func (documentManifestMUS) Size(m DocumentManifest) (size int) {
	size = ord.String.Size(m.DocumentID)
	size += ord.String.Size(m.Fingerprint)
	size += varint.Int.Size(m.ChunkCount)
	size += varint.Int.Size(m.VectorSize)
	size += varint.Int64.Size(m.IndexedAt.UnixMicro())
	return size
}

func (documentManifestMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for i := 0; i < 2; i++ {
		n1, err = varint.Int.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	return
}
