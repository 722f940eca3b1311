package catalog

import (
	"hash/maphash"
	"iter"
)

// Index maps package keys to records, case-insensitively. Records keep the
// order they were inserted in so iteration is stable for a given snapshot.
// An Index is never mutated once its snapshot is published.
type Index struct {
	seed    maphash.Seed
	buckets map[uint64][]*Record
	records []*Record
}

func newIndex(capacity int) *Index {
	return &Index{
		seed:    maphash.MakeSeed(),
		buckets: make(map[uint64][]*Record, capacity),
		records: make([]*Record, 0, capacity),
	}
}

// insert adds r unless a record with an equal key is already present.
func (ix *Index) insert(r *Record) bool {
	h := r.Key.Hash(ix.seed)
	for _, existing := range ix.buckets[h] {
		if existing.Key.Equal(r.Key) {
			return false
		}
	}
	ix.buckets[h] = append(ix.buckets[h], r)
	ix.records = append(ix.records, r)
	return true
}

// Get looks up name in any casing without allocating.
func (ix *Index) Get(name string) (*Record, bool) {
	if !isASCII(name) {
		return nil, false
	}
	for _, r := range ix.buckets[hashFold(ix.seed, name)] {
		if equalFold(r.Key.name, name) {
			return r, true
		}
	}
	return nil, false
}

func (ix *Index) Len() int {
	return len(ix.records)
}

// All yields records in insertion order.
func (ix *Index) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, r := range ix.records {
			if !yield(r) {
				return
			}
		}
	}
}
