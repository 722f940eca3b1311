package catalog

import (
	"errors"
	"strings"

	"github.com/huyhandes/tsnuget/internal/nuget"
	"github.com/huyhandes/tsnuget/internal/thunderstore"
)

const deprecationMessage = "Deprecated on Thunderstore"

var errNoVersions = errors.New("package has no versions")

// project maps one upstream package onto its registration. Version bounds
// come from the upstream's ordering (newest first) and are not re-sorted.
func project(urls nuget.URLs, pkg thunderstore.Package) (*Record, error) {
	key, err := NewKey(pkg.FullName)
	if err != nil {
		return nil, err
	}
	if len(pkg.Versions) == 0 {
		return nil, errNoVersions
	}

	lowerName := strings.ToLower(pkg.FullName)
	registrationURL := urls.Registration(lowerName)

	var deprecation *nuget.Deprecation
	if pkg.IsDeprecated {
		deprecation = &nuget.Deprecation{
			ID:      registrationURL + "#deprecation",
			Message: deprecationMessage,
			Reasons: []string{"Other"},
		}
	}

	leaves := make([]nuget.RegistrationLeaf, len(pkg.Versions))
	for i, v := range pkg.Versions {
		content := urls.PackageContent(lowerName, v.VersionNumber)
		leaves[i] = nuget.RegistrationLeaf{
			ID:             registrationURL,
			PackageContent: content,
			CatalogEntry: nuget.CatalogEntry{
				ID:             pkg.FullName,
				PackageID:      pkg.FullName,
				Description:    describe(pkg, v),
				IconURL:        v.Icon,
				Published:      v.DateCreated,
				Version:        v.VersionNumber,
				PackageContent: content,
				ProjectURL:     v.WebsiteURL,
				Deprecation:    deprecation,
				Downloads:      v.Downloads,
				DownloadURL:    v.DownloadURL,
			},
		}
	}

	page := nuget.RegistrationPage{
		ID:    registrationURL,
		Count: len(leaves),
		Lower: pkg.Versions[len(pkg.Versions)-1].VersionNumber,
		Upper: pkg.Versions[0].VersionNumber,
		Items: leaves,
	}

	record := &Record{
		Key: key,
		Registration: nuget.Registration{
			ID:    registrationURL,
			Type:  nuget.RegistrationTypes,
			Count: 1,
			Items: []nuget.RegistrationPage{page},
		},
		lowerName: lowerName,
	}
	record.searchItem = searchItem(urls, record)
	return record, nil
}

// describe appends the package links and dependency list to the upstream
// description, one dependency per line.
func describe(pkg thunderstore.Package, v thunderstore.Version) string {
	var sb strings.Builder
	sb.WriteString(v.Description)
	sb.WriteString("\n\nPackage URL: ")
	sb.WriteString(pkg.PackageURL)
	sb.WriteString("\nWebsite URL: ")
	sb.WriteString(v.WebsiteURL)
	sb.WriteString("\nDepends on:")
	for _, dep := range v.Dependencies {
		sb.WriteByte('\n')
		sb.WriteString(dep)
	}
	return sb.String()
}

func searchItem(urls nuget.URLs, r *Record) nuget.SearchItem {
	page := r.page()
	latest := page.Items[0].CatalogEntry

	versions := make([]nuget.SearchVersion, len(page.Items))
	for i, leaf := range page.Items {
		versions[i] = nuget.SearchVersion{
			ID:        leaf.ID + "#" + leaf.CatalogEntry.Version,
			Version:   leaf.CatalogEntry.Version,
			Downloads: leaf.CatalogEntry.Downloads,
		}
	}

	return nuget.SearchItem{
		ID:           r.Name(),
		Version:      page.Upper,
		Description:  latest.Description,
		Versions:     versions,
		IconURL:      latest.IconURL,
		Registration: urls.Registration(r.Name()),
	}
}
