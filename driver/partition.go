package driver

import "sync/atomic"

// Partitioner hands out fixed-size contiguous index ranges of a shared
// key sequence. Workers claim chunks greedily off a single atomic cursor
// and so balance themselves without any static partitioning.
type Partitioner struct {
	cursor atomic.Uint64
	chunk  uint64
}

// NewPartitioner creates a Partitioner that claims ranges of chunkSize
// indices starting at zero.
func NewPartitioner(chunkSize uint64) *Partitioner {
	return &Partitioner{chunk: chunkSize}
}

// Claim atomically reserves the next chunk and returns it as the
// half-open range [start, end). Claims are linearizable and disjoint.
// The partitioner does not know the sequence bound: the final chunk may
// extend past it, and the caller must clip its iteration accordingly.
func (p *Partitioner) Claim() (start, end uint64) {
	end = p.cursor.Add(p.chunk)
	return end - p.chunk, end
}
