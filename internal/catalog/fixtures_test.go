package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/huyhandes/tsnuget/internal/thunderstore"
)

const testBaseURL = "http://feed.test"

type fakeUpstream struct {
	mu          sync.Mutex
	communities []string
	packages    map[string][]thunderstore.Package
	failOn      string
	listErr     error

	communityCalls atomic.Int64
	packageCalls   atomic.Int64
}

func (f *fakeUpstream) ListCommunities(ctx context.Context) ([]string, error) {
	f.communityCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.communities...), nil
}

func (f *fakeUpstream) ListPackages(ctx context.Context, community string) ([]thunderstore.Package, error) {
	f.packageCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if community == f.failOn {
		return nil, &thunderstore.FetchError{URL: "/c/" + community, Status: 500}
	}
	return f.packages[community], nil
}

func (f *fakeUpstream) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

var errBoom = errors.New("boom")

func testPackage(name string, versions ...string) thunderstore.Package {
	pkg := thunderstore.Package{
		FullName:   name,
		PackageURL: "https://thunderstore.io/package/" + name + "/",
	}
	for _, v := range versions {
		pkg.Versions = append(pkg.Versions, thunderstore.Version{
			Description:   name + " description",
			Icon:          "https://cdn.test/" + name + ".png",
			VersionNumber: v,
			DownloadURL:   "https://thunderstore.io/package/download/" + name + "/" + v + "/",
			Downloads:     42,
			DateCreated:   "2024-01-02T03:04:05Z",
			WebsiteURL:    "https://github.com/" + name,
			Dependencies:  []string{"BepInEx-BepInExPack-5.4.2100"},
		})
	}
	return pkg
}

func testUpstream() *fakeUpstream {
	return &fakeUpstream{
		communities: []string{"riskofrain2", "valheim"},
		packages: map[string][]thunderstore.Package{
			"riskofrain2": {
				testPackage("tristanmcpherson-R2API", "5.0.0", "4.4.1"),
				testPackage("Foo-Bar", "2.0.0", "1.0.0"),
				testPackage("ebkr-r2modman", "3.1.0"),
			},
			"valheim": {
				testPackage("foo-bar", "9.9.9"),
				testPackage("denikson-BepInExPack_Valheim", "5.4.2200", "5.4.2100", "5.4.1900"),
				testPackage("empty-Package"),
			},
		},
	}
}

func buildTestSnapshot(t interface{ Fatalf(string, ...any) }) *Snapshot {
	snap, err := NewBuilder(testUpstream(), testBaseURL, 4).Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return snap
}
