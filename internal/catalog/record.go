package catalog

import (
	"github.com/huyhandes/tsnuget/internal/nuget"
)

// Record is one upstream package projected into NuGet shapes.
type Record struct {
	Key          Key
	Registration nuget.Registration

	lowerName  string
	searchItem nuget.SearchItem
}

// Name is the upstream's canonical full name.
func (r *Record) Name() string {
	return r.Key.String()
}

func (r *Record) page() *nuget.RegistrationPage {
	return &r.Registration.Items[0]
}

// Versions lists the package's versions in upstream order, newest first.
func (r *Record) Versions() []string {
	leaves := r.page().Items
	versions := make([]string, len(leaves))
	for i, leaf := range leaves {
		versions[i] = leaf.CatalogEntry.Version
	}
	return versions
}

// Version finds one version's registration leaf by exact version string.
func (r *Record) Version(version string) (*nuget.RegistrationLeaf, bool) {
	leaves := r.page().Items
	for i := range leaves {
		if leaves[i].CatalogEntry.Version == version {
			return &leaves[i], true
		}
	}
	return nil, false
}

func (r *Record) Lower() string {
	return r.page().Lower
}

func (r *Record) Upper() string {
	return r.page().Upper
}

// SearchItem is the record's entry in search results.
func (r *Record) SearchItem() nuget.SearchItem {
	return r.searchItem
}

// VersionRef is everything needed to materialize one version's archive.
type VersionRef struct {
	ID          string
	Version     string
	Description string
	DownloadURL string
}

// Ref resolves an exact version string to its archive reference.
func (r *Record) Ref(version string) (VersionRef, bool) {
	leaf, ok := r.Version(version)
	if !ok {
		return VersionRef{}, false
	}
	return VersionRef{
		ID:          r.Name(),
		Version:     leaf.CatalogEntry.Version,
		Description: leaf.CatalogEntry.Description,
		DownloadURL: leaf.CatalogEntry.DownloadURL,
	}, true
}
