package webdav

import (
	"context"
	"io"

	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// CreateFolderFactory creates folders.
type CreateFolderFactory struct {
	dav  *DAV
	info GetFileInfoFactory
}

// CreateFolder creates path in space. With fetchFolder set the created
// folder is listed and returned.
func (f CreateFolderFactory) CreateFolder(ctx context.Context, space resource.Space, path string, fetchFolder bool) (resource.Resource, error) {
	if err := f.dav.Mkcol(ctx, davpath.Join(space.WebDavPath, path), &space); err != nil {
		return resource.Resource{}, err
	}
	if !fetchFolder {
		return resource.Resource{}, nil
	}
	return f.info.GetFileInfo(ctx, space, path, ListFilesOptions{})
}

// FileContents is a downloaded file.
type FileContents struct {
	Body        []byte
	ContentType string
	ETag        string
}

// GetFileContentsOptions controls GetFileContents.
type GetFileContentsOptions struct {
	NoCache bool
	Headers map[string]string
}

// GetFileContentsFactory downloads files.
type GetFileContentsFactory struct {
	dav *DAV
}

// GetFileContents downloads the file at path in space.
func (f GetFileContentsFactory) GetFileContents(ctx context.Context, space resource.Space, path string, opts GetFileContentsOptions) (FileContents, error) {
	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if opts.NoCache {
		headers["Cache-Control"] = "no-cache"
	}

	resp, err := f.dav.Get(ctx, davpath.Join(space.WebDavPath, path), headers, &space)
	if err != nil {
		return FileContents{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FileContents{}, err
	}
	return FileContents{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}, nil
}

// PutFileContentsOptions controls PutFileContents.
type PutFileContentsOptions struct {
	Content io.Reader
	// PreviousEntityTag makes the upload conditional on the current etag.
	PreviousEntityTag string
	// Overwrite allows replacing an existing file when no etag is given.
	Overwrite bool
}

// PutFileContentsFactory uploads files.
type PutFileContentsFactory struct {
	dav  *DAV
	info GetFileInfoFactory
}

// PutFileContents uploads content to path in space and returns the
// resulting resource.
func (f PutFileContentsFactory) PutFileContents(ctx context.Context, space resource.Space, path string, opts PutFileContentsOptions) (resource.Resource, error) {
	headers := map[string]string{}
	switch {
	case opts.PreviousEntityTag != "":
		headers["If-Match"] = opts.PreviousEntityTag
	case !opts.Overwrite:
		headers["If-None-Match"] = "*"
	}

	if _, err := f.dav.Put(ctx, davpath.Join(space.WebDavPath, path), opts.Content, headers, &space); err != nil {
		return resource.Resource{}, err
	}
	return f.info.GetFileInfo(ctx, space, path, ListFilesOptions{})
}

// CopyFilesFactory copies resources.
type CopyFilesFactory struct {
	dav *DAV
}

// CopyFiles copies sourcePath in sourceSpace to targetPath in targetSpace.
func (f CopyFilesFactory) CopyFiles(ctx context.Context, sourceSpace resource.Space, sourcePath string, targetSpace resource.Space, targetPath string, overwrite bool) error {
	return f.dav.Copy(ctx,
		davpath.Join(sourceSpace.WebDavPath, sourcePath),
		davpath.Join(targetSpace.WebDavPath, targetPath),
		overwrite, &sourceSpace)
}

// MoveFilesFactory moves resources.
type MoveFilesFactory struct {
	dav *DAV
}

// MoveFiles moves sourcePath in sourceSpace to targetPath in targetSpace.
func (f MoveFilesFactory) MoveFiles(ctx context.Context, sourceSpace resource.Space, sourcePath string, targetSpace resource.Space, targetPath string, overwrite bool) error {
	return f.dav.Move(ctx,
		davpath.Join(sourceSpace.WebDavPath, sourcePath),
		davpath.Join(targetSpace.WebDavPath, targetPath),
		overwrite, &sourceSpace)
}

// DeleteFileFactory deletes resources.
type DeleteFileFactory struct {
	dav *DAV
}

// DeleteFile moves path in space to the trash bin.
func (f DeleteFileFactory) DeleteFile(ctx context.Context, space resource.Space, path string) error {
	return f.dav.Delete(ctx, davpath.Join(space.WebDavPath, path), &space)
}

// RestoreFileFactory restores trash bin items.
type RestoreFileFactory struct {
	dav *DAV
}

// RestoreFile restores the trash item id of space to restorePath.
func (f RestoreFileFactory) RestoreFile(ctx context.Context, space resource.Space, id, restorePath string, overwrite bool) error {
	return f.dav.Move(ctx,
		davpath.Join(space.WebDavTrashPath, id),
		davpath.Join(space.WebDavPath, restorePath),
		overwrite, &space)
}

// ClearTrashBinFactory purges trash bin items.
type ClearTrashBinFactory struct {
	dav *DAV
}

// ClearTrashBin permanently deletes the trash item id, or the whole trash
// bin of space when id is empty.
func (f ClearTrashBinFactory) ClearTrashBin(ctx context.Context, space resource.Space, id string) error {
	return f.dav.Delete(ctx, davpath.Join(space.WebDavTrashPath, id), &space)
}
