package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyhandes/tsnuget/internal/nuget"
	"github.com/huyhandes/tsnuget/internal/thunderstore"
)

func TestBuilder_Build(t *testing.T) {
	upstream := testUpstream()
	snap, err := NewBuilder(upstream, testBaseURL, 4).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), upstream.communityCalls.Load())
	assert.Equal(t, int64(2), upstream.packageCalls.Load())

	// empty-Package has no versions and foo-bar is a duplicate
	assert.Equal(t, 4, snap.Len())

	var names []string
	for r := range snap.Records() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{
		"tristanmcpherson-R2API",
		"Foo-Bar",
		"ebkr-r2modman",
		"denikson-BepInExPack_Valheim",
	}, names)
}

func TestBuilder_DuplicateFirstWins(t *testing.T) {
	snap := buildTestSnapshot(t)

	for _, id := range []string{"Foo-Bar", "foo-bar", "FOO-BAR"} {
		r, err := snap.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, "Foo-Bar", r.Name())
		assert.Equal(t, []string{"2.0.0", "1.0.0"}, r.Versions())
	}
}

func TestBuilder_FetchFailureFailsBuild(t *testing.T) {
	upstream := testUpstream()
	upstream.failOn = "valheim"

	snap, err := NewBuilder(upstream, testBaseURL, 1).Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, thunderstore.ErrUpstream)
	assert.Contains(t, err.Error(), "valheim")
}

func TestBuilder_DiscoveryFailure(t *testing.T) {
	upstream := testUpstream()
	upstream.setListErr(errBoom)

	_, err := NewBuilder(upstream, testBaseURL, 4).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, upstream.packageCalls.Load())
}

func TestBuilder_SkipsInvalidNames(t *testing.T) {
	upstream := &fakeUpstream{
		communities: []string{"c"},
		packages: map[string][]thunderstore.Package{
			"c": {testPackage("Ünicode-Mod", "1.0.0"), testPackage("ok-Mod", "1.0.0")},
		},
	}

	snap, err := NewBuilder(upstream, testBaseURL, 0).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestBuilder_Deterministic(t *testing.T) {
	first := buildTestSnapshot(t)
	second := buildTestSnapshot(t)

	assert.Equal(t, first.AllPackagesPayload(), second.AllPackagesPayload())
	require.Equal(t, first.Len(), second.Len())
	for r := range first.Records() {
		other, err := second.Lookup(r.Name())
		require.NoError(t, err)
		assert.Equal(t, r.Registration, other.Registration)
	}
}

func TestBuilder_EmptyUpstream(t *testing.T) {
	snap, err := NewBuilder(&fakeUpstream{}, testBaseURL, 4).Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
	assert.JSONEq(t, `{"totalHits":0,"data":[]}`, string(snap.AllPackagesPayload()))
}

func TestProject_Registration(t *testing.T) {
	pkg := testPackage("Foo-Bar", "2.0.0", "1.5.0", "1.0.0")
	pkg.IsDeprecated = true
	pkg.Versions[0].Dependencies = []string{"a-b-1.0.0", "c-d-2.0.0"}

	r, err := project(nuget.URLs{BaseURL: testBaseURL}, pkg)
	require.NoError(t, err)

	reg := r.Registration
	regID := testBaseURL + "/nuget/v3/package/foo-bar/index.json"
	assert.Equal(t, regID, reg.ID)
	assert.Equal(t, nuget.RegistrationTypes, reg.Type)
	assert.Equal(t, 1, reg.Count)
	require.Len(t, reg.Items, 1)

	page := reg.Items[0]
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, "1.0.0", page.Lower)
	assert.Equal(t, "2.0.0", page.Upper)
	assert.Equal(t, "1.0.0", r.Lower())
	assert.Equal(t, "2.0.0", r.Upper())

	leaf := page.Items[0]
	assert.Equal(t, regID, leaf.ID)
	assert.Equal(t, testBaseURL+"/nuget/v3/base/foo-bar/2.0.0/foo-bar.2.0.0.nupkg", leaf.PackageContent)
	entry := leaf.CatalogEntry
	assert.Equal(t, "Foo-Bar", entry.ID)
	assert.Equal(t, "Foo-Bar", entry.PackageID)
	assert.Equal(t, "2.0.0", entry.Version)
	assert.Equal(t, leaf.PackageContent, entry.PackageContent)
	assert.Equal(t,
		"Foo-Bar description\n\nPackage URL: https://thunderstore.io/package/Foo-Bar/\nWebsite URL: https://github.com/Foo-Bar\nDepends on:\na-b-1.0.0\nc-d-2.0.0",
		entry.Description)

	require.NotNil(t, entry.Deprecation)
	assert.Equal(t, regID+"#deprecation", entry.Deprecation.ID)
	assert.Equal(t, "Deprecated on Thunderstore", entry.Deprecation.Message)
	assert.Equal(t, []string{"Other"}, entry.Deprecation.Reasons)
}

func TestProject_UpstreamOrderIsTrusted(t *testing.T) {
	// not sorted semantically; bounds follow position only
	pkg := testPackage("a-b", "1.0.0", "10.0.0", "2.0.0")
	r, err := project(nuget.URLs{BaseURL: testBaseURL}, pkg)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", r.Lower())
	assert.Equal(t, "1.0.0", r.Upper())
}

func TestProject_NoDependencies(t *testing.T) {
	pkg := testPackage("a-b", "1.0.0")
	pkg.Versions[0].Dependencies = nil
	r, err := project(nuget.URLs{BaseURL: testBaseURL}, pkg)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(r.Registration.Items[0].Items[0].CatalogEntry.Description, "Depends on:"))
	assert.Nil(t, r.Registration.Items[0].Items[0].CatalogEntry.Deprecation)
}

func TestProject_Errors(t *testing.T) {
	urls := nuget.URLs{BaseURL: testBaseURL}

	_, err := project(urls, testPackage("a-b"))
	assert.ErrorIs(t, err, errNoVersions)

	_, err = project(urls, testPackage("ä-b", "1.0.0"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestProject_SearchItem(t *testing.T) {
	r, err := project(nuget.URLs{BaseURL: testBaseURL}, testPackage("Foo-Bar", "2.0.0", "1.0.0"))
	require.NoError(t, err)

	item := r.SearchItem()
	assert.Equal(t, "Foo-Bar", item.ID)
	assert.Equal(t, "2.0.0", item.Version)
	assert.Equal(t, testBaseURL+"/nuget/v3/package/Foo-Bar/index.json", item.Registration)
	require.Len(t, item.Versions, 2)
	assert.Equal(t, testBaseURL+"/nuget/v3/package/foo-bar/index.json#1.0.0", item.Versions[1].ID)
	assert.Equal(t, uint32(42), item.Versions[1].Downloads)
}

func TestSnapshot_AllPackagesPayload(t *testing.T) {
	snap := buildTestSnapshot(t)

	var result nuget.SearchResult
	require.NoError(t, sonic.Unmarshal(snap.AllPackagesPayload(), &result))
	assert.Equal(t, snap.Len(), result.TotalHits)
	require.Len(t, result.Data, snap.Len())
	assert.Equal(t, "tristanmcpherson-R2API", result.Data[0].ID)
}

func TestSnapshot_Lookup(t *testing.T) {
	snap := buildTestSnapshot(t)

	_, err := snap.Lookup("nobody-Nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = snap.Lookup("nöbody")
	assert.ErrorIs(t, err, ErrInvalidName)

	r, err := snap.Lookup("EBKR-R2MODMAN")
	require.NoError(t, err)
	ref, ok := r.Ref("3.1.0")
	require.True(t, ok)
	assert.Equal(t, "ebkr-r2modman", ref.ID)
	assert.Equal(t, "https://thunderstore.io/package/download/ebkr-r2modman/3.1.0/", ref.DownloadURL)

	_, ok = r.Ref("0.0.1")
	assert.False(t, ok)
}
