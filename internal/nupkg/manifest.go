package nupkg

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const nuspecNamespace = "http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd"

type nuspec struct {
	XMLName  xml.Name       `xml:"package"`
	Xmlns    string         `xml:"xmlns,attr"`
	Metadata nuspecMetadata `xml:"metadata"`
}

type nuspecMetadata struct {
	ID          string `xml:"id"`
	Version     string `xml:"version"`
	Authors     string `xml:"authors"`
	Description string `xml:"description"`
}

// manifest renders the .nuspec for one version. All values go through the
// XML encoder, so upstream text cannot break the document structure.
func manifest(id, version, description string) ([]byte, error) {
	doc := nuspec{
		Xmlns: nuspecNamespace,
		Metadata: nuspecMetadata{
			ID:          id,
			Version:     version,
			Authors:     author(id),
			Description: sanitize(description),
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render nuspec: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// author is the namespace part of a Thunderstore full name.
func author(id string) string {
	namespace, _, found := strings.Cut(id, "-")
	if !found || namespace == "" {
		return id
	}
	return namespace
}

// sanitize drops characters XML 1.0 cannot represent at all; the encoder
// would otherwise replace them with U+FFFD.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}
