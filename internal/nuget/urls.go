package nuget

import "fmt"

// Route prefixes, relative to the feed's base URL.
const (
	PathIndex        = "/nuget/v3/index.json"
	PathBase         = "/nuget/v3/base"
	PathRegistration = "/nuget/v3/package"
	PathSearch       = "/nuget/v3/search"
	PathPublish      = "/nuget/v3/nullpublish"
)

// URLs renders the absolute URLs the feed hands out to clients.
type URLs struct {
	BaseURL string
}

func (u URLs) Registration(id string) string {
	return fmt.Sprintf("%s%s/%s/index.json", u.BaseURL, PathRegistration, id)
}

func (u URLs) PackageContent(id, version string) string {
	return fmt.Sprintf("%s%s/%s/%s/%s.%s.nupkg", u.BaseURL, PathBase, id, version, id, version)
}

func (u URLs) ServiceIndex() ServiceIndex {
	search := u.BaseURL + PathSearch
	return ServiceIndex{
		Version: "3.0.0",
		Resources: []Resource{
			{ID: u.BaseURL + PathBase, Type: TypePackageBaseAddress},
			{ID: search, Type: TypeSearchQuery},
			{ID: search, Type: TypeSearchQueryBeta},
			{ID: search, Type: TypeSearchQueryRC},
			{ID: u.BaseURL + PathPublish, Type: TypePackagePublish},
			{ID: u.BaseURL + PathRegistration, Type: TypeRegistrationsBase},
		},
	}
}
