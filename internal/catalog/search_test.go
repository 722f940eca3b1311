package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyhandes/tsnuget/internal/thunderstore"
)

func ptr[T any](v T) *T { return &v }

func largeSnapshot(t *testing.T, n int) *Snapshot {
	t.Helper()
	var packages []thunderstore.Package
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("author%d-Mod%03d", i%3, i)
		packages = append(packages, testPackage(name, "1.0.0"))
	}
	upstream := &fakeUpstream{
		communities: []string{"c"},
		packages:    map[string][]thunderstore.Package{"c": packages},
	}
	snap, err := NewBuilder(upstream, testBaseURL, 1).Build(t.Context())
	require.NoError(t, err)
	return snap
}

func ids(t *testing.T, snap *Snapshot, q Query) []string {
	t.Helper()
	result := Search(snap, q)
	require.NotNil(t, result.Data)
	require.Equal(t, len(result.Data), result.TotalHits)
	out := make([]string, len(result.Data))
	for i, item := range result.Data {
		out[i] = item.ID
	}
	return out
}

func TestQuery_IsEmpty(t *testing.T) {
	assert.True(t, Query{}.IsEmpty())
	assert.False(t, Query{Text: ptr("")}.IsEmpty())
	assert.False(t, Query{Skip: ptr(0)}.IsEmpty())
	assert.False(t, Query{Take: ptr(1)}.IsEmpty())
}

func TestSearch_Filter(t *testing.T) {
	snap := buildTestSnapshot(t)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"case insensitive", "R2", []string{"tristanmcpherson-R2API", "ebkr-r2modman"}},
		{"upper query", "FOO", []string{"Foo-Bar"}},
		{"matches namespace", "denikson", []string{"denikson-BepInExPack_Valheim"}},
		{"no match", "zzz", []string{}},
		{"empty text matches all", "", []string{"tristanmcpherson-R2API", "Foo-Bar", "ebkr-r2modman", "denikson-BepInExPack_Valheim"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(t, snap, Query{Text: ptr(tt.text)}))
		})
	}
}

func TestSearch_SkipTake(t *testing.T) {
	snap := buildTestSnapshot(t)

	assert.Equal(t, []string{"Foo-Bar", "ebkr-r2modman"}, ids(t, snap, Query{Skip: ptr(1), Take: ptr(2)}))
	assert.Equal(t, []string{"denikson-BepInExPack_Valheim"}, ids(t, snap, Query{Skip: ptr(3)}))
	assert.Equal(t, []string{}, ids(t, snap, Query{Skip: ptr(10)}))
	assert.Equal(t, []string{}, ids(t, snap, Query{Take: ptr(0)}))
	assert.Equal(t, []string{"tristanmcpherson-R2API"}, ids(t, snap, Query{Take: ptr(1)}))
	assert.Equal(t, []string{"ebkr-r2modman"}, ids(t, snap, Query{Text: ptr("r2"), Skip: ptr(1), Take: ptr(5)}))
}

func TestSearch_TotalHitsCountsReturnedItems(t *testing.T) {
	snap := largeSnapshot(t, 50)
	result := Search(snap, Query{Take: ptr(7)})
	assert.Equal(t, 7, result.TotalHits)
	assert.Len(t, result.Data, 7)
}

func TestSearch_PagesPartitionResults(t *testing.T) {
	snap := largeSnapshot(t, 100)
	text := ptr("author1")
	all := ids(t, snap, Query{Text: text})
	require.NotEmpty(t, all)

	for _, n := range []int{1, 3, 7, 33, 200} {
		var paged []string
		for skip := 0; skip < len(all)+n; skip += n {
			paged = append(paged, ids(t, snap, Query{Text: text, Skip: ptr(skip), Take: ptr(n)})...)
		}
		assert.Equal(t, all, paged, "page size %d", n)
	}
}

func TestSearch_EmptyQueryMatchesCatalog(t *testing.T) {
	snap := buildTestSnapshot(t)

	got := ids(t, snap, Query{})
	var want []string
	for r := range snap.Records() {
		want = append(want, r.Name())
	}
	assert.ElementsMatch(t, want, got)
}

func TestSearch_EmptySnapshot(t *testing.T) {
	result := Search(emptySnapshot(), Query{Text: ptr("x")})
	assert.Zero(t, result.TotalHits)
	assert.NotNil(t, result.Data)
}

func TestSearch_TakeStopsEarly(t *testing.T) {
	snap := largeSnapshot(t, 20)
	visited := 0
	seq := take(skip(snap.Records(), 2), 3)
	for range seq {
		visited++
	}
	assert.Equal(t, 3, visited)

	pulled := 0
	counting := func(yield func(*Record) bool) {
		for r := range snap.Records() {
			pulled++
			if !yield(r) {
				return
			}
		}
	}
	for range take(counting, 2) {
	}
	assert.Equal(t, 2, pulled)
}

func BenchmarkSearch_Filter(b *testing.B) {
	var packages []thunderstore.Package
	for i := 0; i < 5000; i++ {
		packages = append(packages, testPackage(fmt.Sprintf("author%d-Mod%d", i%50, i), "1.0.0"))
	}
	upstream := &fakeUpstream{communities: []string{"c"}, packages: map[string][]thunderstore.Package{"c": packages}}
	snap, err := NewBuilder(upstream, testBaseURL, 1).Build(b.Context())
	if err != nil {
		b.Fatal(err)
	}
	q := Query{Text: ptr("MOD49"), Take: ptr(20)}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Search(snap, q)
	}
}
