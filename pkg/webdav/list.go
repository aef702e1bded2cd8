package webdav

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// GetPathForFileIDFactory resolves file ids to paths.
type GetPathForFileIDFactory struct {
	dav *DAV
}

// GetPathForFileID returns the path of fileID as seen by the current user.
func (f GetPathForFileIDFactory) GetPathForFileID(ctx context.Context, fileID string) (string, error) {
	entries, err := f.dav.Propfind(ctx, davpath.Join("meta", fileID), PropfindOptions{
		Depth:      "0",
		Properties: []resource.Property{resource.PropMetaPathForUser},
	})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", httperror.New(httperror.ErrorData{StatusCode: http.StatusNotFound})
	}
	return entries[0].Props.Text(resource.PropMetaPathForUser), nil
}

// ListFilesOptions controls ListFiles.
type ListFilesOptions struct {
	// Depth defaults to "1".
	Depth string
	// Properties defaults to the property set matching the space.
	Properties      []resource.Property
	ExtraProperties []string
	// FileID, if set, is checked against the listed folder. On mismatch or
	// 404 the folder is listed again at the path the id resolves to.
	FileID string
	// Trash lists the trash bin of the space instead of path.
	Trash bool
}

// ListFilesResult is a listed folder and its children.
type ListFilesResult struct {
	Resource resource.Resource   `json:"resource"`
	Children []resource.Resource `json:"children"`
}

// ListFilesFactory lists folders.
type ListFilesFactory struct {
	dav   *DAV
	paths GetPathForFileIDFactory
}

// ListFiles lists path in space.
func (f ListFilesFactory) ListFiles(ctx context.Context, space resource.Space, path string, opts ListFilesOptions) (ListFilesResult, error) {
	if opts.Trash {
		return f.listTrash(ctx, space, opts)
	}

	props := opts.Properties
	if props == nil {
		props = resource.DefaultProperties
		if space.IsPublic() {
			props = resource.PublicLinkProperties
		}
	}

	entries, err := f.dav.Propfind(ctx, davpath.Join(space.WebDavPath, path), PropfindOptions{
		Depth:           opts.Depth,
		Properties:      props,
		ExtraProperties: opts.ExtraProperties,
		Space:           &space,
	})
	if err != nil {
		if opts.FileID != "" && httperror.IsNotFound(err) {
			return f.listCorrectedPath(ctx, space, opts)
		}
		return ListFilesResult{}, err
	}
	if len(entries) == 0 {
		return ListFilesResult{}, fmt.Errorf("list %s: empty multistatus", path)
	}
	if opts.FileID != "" && entries[0].Props.Text(resource.PropFileID) != opts.FileID {
		return f.listCorrectedPath(ctx, space, opts)
	}

	return buildListResult(entries, opts.ExtraProperties, resource.BuildResource), nil
}

func (f ListFilesFactory) listCorrectedPath(ctx context.Context, space resource.Space, opts ListFilesOptions) (ListFilesResult, error) {
	path, err := f.paths.GetPathForFileID(ctx, opts.FileID)
	if err != nil {
		return ListFilesResult{}, err
	}
	opts.FileID = ""
	return f.ListFiles(ctx, space, path, opts)
}

func (f ListFilesFactory) listTrash(ctx context.Context, space resource.Space, opts ListFilesOptions) (ListFilesResult, error) {
	props := opts.Properties
	if props == nil {
		props = resource.TrashProperties
	}
	entries, err := f.dav.Propfind(ctx, space.WebDavTrashPath, PropfindOptions{
		Depth:      opts.Depth,
		Properties: props,
		Space:      &space,
	})
	if err != nil {
		return ListFilesResult{}, err
	}
	if len(entries) == 0 {
		return ListFilesResult{}, fmt.Errorf("list trash of %s: empty multistatus", space.ID)
	}
	result := ListFilesResult{
		Resource: resource.BuildResource(entries[0], nil),
		Children: make([]resource.Resource, 0, len(entries)-1),
	}
	for _, e := range entries[1:] {
		result.Children = append(result.Children, resource.BuildDeletedResource(e))
	}
	return result, nil
}

func buildListResult(entries []resource.RawEntry, extra []string, build func(resource.RawEntry, []string) resource.Resource) ListFilesResult {
	result := ListFilesResult{
		Resource: build(entries[0], extra),
		Children: make([]resource.Resource, 0, len(entries)-1),
	}
	for _, e := range entries[1:] {
		result.Children = append(result.Children, build(e, extra))
	}
	return result
}

// ListFilesByIDFactory lists folders addressed by id.
type ListFilesByIDFactory struct {
	dav *DAV
}

// ListFilesByID lists the folder with the given id.
func (f ListFilesByIDFactory) ListFilesByID(ctx context.Context, fileID string, opts ListFilesOptions) (ListFilesResult, error) {
	props := opts.Properties
	if props == nil {
		props = resource.DefaultProperties
	}
	entries, err := f.dav.Propfind(ctx, davpath.Join("/spaces", fileID), PropfindOptions{
		Depth:           opts.Depth,
		Properties:      props,
		ExtraProperties: opts.ExtraProperties,
	})
	if err != nil {
		return ListFilesResult{}, err
	}
	if len(entries) == 0 {
		return ListFilesResult{}, fmt.Errorf("list %s: empty multistatus", fileID)
	}
	return buildListResult(entries, opts.ExtraProperties, resource.BuildResource), nil
}

// GetFileInfoFactory fetches single resources.
type GetFileInfoFactory struct {
	list ListFilesFactory
}

// GetFileInfo returns the resource at path in space.
func (f GetFileInfoFactory) GetFileInfo(ctx context.Context, space resource.Space, path string, opts ListFilesOptions) (resource.Resource, error) {
	opts.Depth = "0"
	result, err := f.list.ListFiles(ctx, space, path, opts)
	if err != nil {
		return resource.Resource{}, err
	}
	return result.Resource, nil
}
