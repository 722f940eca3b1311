// Package nuget holds the NuGet v3 wire shapes served by the feed.
package nuget

// Resource types advertised in the service index.
const (
	TypePackageBaseAddress = "PackageBaseAddress/3.0.0"
	TypeSearchQuery        = "SearchQueryService"
	TypeSearchQueryBeta    = "SearchQueryService/3.0.0-beta"
	TypeSearchQueryRC      = "SearchQueryService/3.0.0-rc"
	TypePackagePublish     = "PackagePublish/2.0.0"
	TypeRegistrationsBase  = "RegistrationsBaseUrl"
)

type Resource struct {
	ID   string `json:"@id"`
	Type string `json:"@type"`
}

type ServiceIndex struct {
	Version   string     `json:"version"`
	Resources []Resource `json:"resources"`
}

// VersionList is the PackageBaseAddress version listing.
type VersionList struct {
	Versions []string `json:"versions"`
}

type Deprecation struct {
	ID      string   `json:"@id"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

// CatalogEntry is the per-version metadata inside a registration leaf.
// Downloads and DownloadURL stay internal: search reports the former and the
// transcoder fetches the latter.
type CatalogEntry struct {
	ID             string       `json:"@id"`
	PackageID      string       `json:"id"`
	Description    string       `json:"description"`
	IconURL        string       `json:"iconUrl"`
	Published      string       `json:"published"`
	Version        string       `json:"version"`
	PackageContent string       `json:"packageContent"`
	ProjectURL     string       `json:"projectUrl,omitempty"`
	Deprecation    *Deprecation `json:"deprecation,omitempty"`
	Downloads      uint32       `json:"-"`
	DownloadURL    string       `json:"-"`
}

type RegistrationLeaf struct {
	ID             string       `json:"@id"`
	PackageContent string       `json:"packageContent"`
	CatalogEntry   CatalogEntry `json:"catalogEntry"`
}

type RegistrationPage struct {
	ID    string             `json:"@id"`
	Count int                `json:"count"`
	Lower string             `json:"lower"`
	Upper string             `json:"upper"`
	Items []RegistrationLeaf `json:"items"`
}

// Registration is the registration index of one package. The feed always
// inlines a single page.
type Registration struct {
	ID    string             `json:"@id"`
	Type  []string           `json:"@type"`
	Count int                `json:"count"`
	Items []RegistrationPage `json:"items"`
}

var RegistrationTypes = []string{
	"PackageRegistration",
	"catalog:CatalogRoot",
	"catalog:Permalink",
}

type SearchVersion struct {
	ID        string `json:"@id"`
	Version   string `json:"version"`
	Downloads uint32 `json:"downloads"`
}

type SearchItem struct {
	ID           string          `json:"id"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Versions     []SearchVersion `json:"versions"`
	IconURL      string          `json:"iconUrl"`
	Registration string          `json:"registration"`
}

type SearchResult struct {
	TotalHits int          `json:"totalHits"`
	Data      []SearchItem `json:"data"`
}
