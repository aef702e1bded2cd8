package webdav

import (
	"bytes"
	"context"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/resource"
)

const defaultSearchLimit = 100

// SearchOptions controls Search.
type SearchOptions struct {
	// Limit defaults to 100.
	Limit           int
	Properties      []resource.Property
	ExtraProperties []string
}

// SearchResult holds matching resources and the total number of matches on
// the server, which may exceed len(Resources).
type SearchResult struct {
	Resources    []resource.Resource `json:"resources"`
	TotalResults int                 `json:"totalResults"`
}

// SearchFactory runs full text and name searches.
type SearchFactory struct {
	dav *DAV
}

// Search looks up term across all spaces of the user.
func (f SearchFactory) Search(ctx context.Context, term string, opts SearchOptions) (SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	props := opts.Properties
	if props == nil {
		props = append(append([]resource.Property{}, resource.DefaultProperties...), resource.PropHighlights)
	}

	var pattern bytes.Buffer
	if err := xml.EscapeText(&pattern, []byte(term)); err != nil {
		return SearchResult{}, err
	}
	body := `<?xml version="1.0"?><oc:search-files ` + xmlNamespaces + `>` +
		propBlock(props, opts.ExtraProperties) +
		`<oc:search><oc:pattern>` + pattern.String() + `</oc:pattern>` +
		`<oc:limit>` + strconv.Itoa(opts.Limit) + `</oc:limit></oc:search></oc:search-files>`

	entries, headers, err := f.dav.Report(ctx, "/spaces/", []byte(body))
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Resources: make([]resource.Resource, 0, len(entries))}
	for _, e := range entries {
		result.Resources = append(result.Resources, resource.BuildSearchResource(e, opts.ExtraProperties))
	}
	result.TotalResults = totalFromContentRange(headers.Get("Content-Range"), len(entries))
	return result, nil
}

// totalFromContentRange parses "rows 0-99/1234". fallback is returned when
// the header is absent or malformed.
func totalFromContentRange(header string, fallback int) int {
	i := strings.LastIndex(header, "/")
	if i < 0 {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(header[i+1:]))
	if err != nil {
		return fallback
	}
	return n
}

// ListFavoriteFilesOptions controls ListFavoriteFiles.
type ListFavoriteFilesOptions struct {
	// Username defaults to the current user.
	Username        string
	Properties      []resource.Property
	ExtraProperties []string
}

// ListFavoriteFilesFactory lists favorites.
type ListFavoriteFilesFactory struct {
	dav  *DAV
	opts Options
}

// ListFavoriteFiles returns every resource the user marked as favorite.
func (f ListFavoriteFilesFactory) ListFavoriteFiles(ctx context.Context, opts ListFavoriteFilesOptions) ([]resource.Resource, error) {
	username := opts.Username
	if username == "" {
		if u := f.opts.user(); u != nil {
			username = u.Username
		}
	}
	props := opts.Properties
	if props == nil {
		props = resource.DefaultProperties
	}

	body := `<?xml version="1.0"?><oc:filter-files ` + xmlNamespaces + `>` +
		propBlock(props, opts.ExtraProperties) +
		`<oc:filter-rules><oc:favorite>1</oc:favorite></oc:filter-rules></oc:filter-files>`

	entries, _, err := f.dav.Report(ctx, davpath.Join("/files", username), []byte(body))
	if err != nil {
		return nil, err
	}
	resources := make([]resource.Resource, 0, len(entries))
	for _, e := range entries {
		resources = append(resources, resource.BuildResource(e, opts.ExtraProperties))
	}
	return resources, nil
}

// SetFavoriteFactory marks favorites.
type SetFavoriteFactory struct {
	dav *DAV
}

// SetFavorite sets or clears the favorite flag of r.
func (f SetFavoriteFactory) SetFavorite(ctx context.Context, space resource.Space, r resource.Resource, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return f.dav.Proppatch(ctx, davpath.Join(space.WebDavPath, r.Path),
		map[resource.Property]string{resource.PropIsFavorite: v}, &space)
}
