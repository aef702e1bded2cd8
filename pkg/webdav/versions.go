package webdav

import (
	"context"

	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// ListFileVersionsFactory lists file versions.
type ListFileVersionsFactory struct {
	dav *DAV
}

// ListFileVersions returns the previous versions of fileID. The current
// version is not included.
func (f ListFileVersionsFactory) ListFileVersions(ctx context.Context, fileID string) ([]resource.Resource, error) {
	entries, err := f.dav.Propfind(ctx, davpath.Join("meta", fileID, "v"), PropfindOptions{
		Properties: resource.DefaultProperties,
	})
	if err != nil {
		return nil, err
	}
	versions := make([]resource.Resource, 0, len(entries))
	for i, e := range entries {
		if i == 0 {
			continue
		}
		versions = append(versions, resource.BuildResource(e, nil))
	}
	return versions, nil
}

// RestoreFileVersionFactory restores file versions.
type RestoreFileVersionFactory struct {
	dav *DAV
}

// RestoreFileVersion replaces r with its version versionID.
func (f RestoreFileVersionFactory) RestoreFileVersion(ctx context.Context, space resource.Space, r resource.Resource, versionID string) error {
	return f.dav.Copy(ctx,
		davpath.Join("meta", r.FileID, "v", versionID),
		davpath.Join(space.WebDavPath, r.Path),
		true, &space)
}
