package catalog

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/bytedance/sonic"

	"github.com/huyhandes/tsnuget/internal/nuget"
)

// ErrNotFound is returned when a package or version is not in the snapshot.
var ErrNotFound = errors.New("package not found")

// Snapshot is one immutable generation of the catalog. Readers keep the
// pointer for as long as they need it; a refresh publishes a new Snapshot
// rather than changing this one.
type Snapshot struct {
	Generation      uint64
	BuiltAt         time.Time
	RefreshInterval time.Duration

	packages           *Index
	allPackagesPayload []byte
}

func newSnapshot(packages *Index) (*Snapshot, error) {
	result := nuget.SearchResult{
		TotalHits: packages.Len(),
		Data:      make([]nuget.SearchItem, 0, packages.Len()),
	}
	for r := range packages.All() {
		result.Data = append(result.Data, r.searchItem)
	}

	payload, err := sonic.Marshal(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize catalog: %w", err)
	}

	return &Snapshot{
		BuiltAt:            time.Now(),
		packages:           packages,
		allPackagesPayload: payload,
	}, nil
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		packages:           newIndex(0),
		allPackagesPayload: []byte(`{"totalHits":0,"data":[]}`),
	}
}

// Lookup resolves a client-supplied package id in any casing.
func (s *Snapshot) Lookup(id string) (*Record, error) {
	key, err := NewKey(id)
	if err != nil {
		return nil, err
	}
	r, ok := s.packages.Get(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// AllPackagesPayload is the serialized result of an unfiltered search. The
// slice is shared and must not be modified.
func (s *Snapshot) AllPackagesPayload() []byte {
	return s.allPackagesPayload
}

func (s *Snapshot) Len() int {
	return s.packages.Len()
}

func (s *Snapshot) Records() iter.Seq[*Record] {
	return s.packages.All()
}
