package catalog

import (
	"iter"
	"strings"

	"github.com/huyhandes/tsnuget/internal/nuget"
)

// Query is a parsed search request. A nil field means the parameter was
// absent.
type Query struct {
	Text *string
	Skip *int
	Take *int
}

// IsEmpty reports whether the query would return every package in order.
func (q Query) IsEmpty() bool {
	return q.Text == nil && q.Skip == nil && q.Take == nil
}

// Search filters the snapshot by a case-insensitive substring of the package
// name, then applies skip and take. TotalHits counts what is returned.
func Search(snap *Snapshot, q Query) nuget.SearchResult {
	seq := snap.Records()
	if q.Text != nil {
		seq = filterName(seq, strings.ToLower(*q.Text))
	}
	if q.Skip != nil {
		seq = skip(seq, *q.Skip)
	}
	if q.Take != nil {
		seq = take(seq, *q.Take)
	}

	result := nuget.SearchResult{Data: []nuget.SearchItem{}}
	for r := range seq {
		result.Data = append(result.Data, r.searchItem)
	}
	result.TotalHits = len(result.Data)
	return result
}

func filterName(seq iter.Seq[*Record], needle string) iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for r := range seq {
			if strings.Contains(r.lowerName, needle) && !yield(r) {
				return
			}
		}
	}
}

func skip(seq iter.Seq[*Record], n int) iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		i := 0
		for r := range seq {
			if i < n {
				i++
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

func take(seq iter.Seq[*Record], n int) iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		if n <= 0 {
			return
		}
		i := 0
		for r := range seq {
			if !yield(r) {
				return
			}
			i++
			if i >= n {
				return
			}
		}
	}
}
