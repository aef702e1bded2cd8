// Package webdav is the client for the WebDAV API of the storage backend.
// New composes one factory per operation around a shared DAV transport.
package webdav

import (
	"net/http"

	"github.com/fruitsalade/webclient/pkg/ocs"
)

// WebDAV exposes every file operation of the backend.
type WebDAV struct {
	GetPathForFileIDFactory
	ListFilesFactory
	ListFilesByIDFactory
	GetFileInfoFactory
	CreateFolderFactory
	GetFileContentsFactory
	PutFileContentsFactory
	GetFileURLFactory
	GetPublicFileURLFactory
	CopyFilesFactory
	MoveFilesFactory
	DeleteFileFactory
	RestoreFileFactory
	ListFileVersionsFactory
	RestoreFileVersionFactory
	ClearTrashBinFactory
	SearchFactory
	ListFavoriteFilesFactory
	SetFavoriteFactory

	transport *DAV
}

// New creates the facade. Factories are built after the factories they
// depend on.
func New(opts Options) *WebDAV {
	if opts.Blobs == nil {
		opts.Blobs = NewBlobStore()
	}
	if opts.AccessToken == nil {
		opts.AccessToken = NewStaticToken("")
	}
	dav := NewDAV(opts)

	ocsClient := ocs.New(ocs.Options{
		BaseURL:    dav.BaseURL(),
		HTTPClient: dav.httpClient,
		Authorize: func(req *http.Request) {
			if auth := AuthHeader(dav.accessToken(), nil); auth != "" {
				req.Header.Set("Authorization", auth)
			}
		},
	})

	paths := GetPathForFileIDFactory{dav: dav}
	list := ListFilesFactory{dav: dav, paths: paths}
	listByID := ListFilesByIDFactory{dav: dav}
	info := GetFileInfoFactory{list: list}
	createFolder := CreateFolderFactory{dav: dav, info: info}
	contents := GetFileContentsFactory{dav: dav}
	putContents := PutFileContentsFactory{dav: dav, info: info}
	fileURL := GetFileURLFactory{dav: dav, contents: contents, ocs: ocsClient, blobs: opts.Blobs, opts: opts}

	return &WebDAV{
		GetPathForFileIDFactory:   paths,
		ListFilesFactory:          list,
		ListFilesByIDFactory:      listByID,
		GetFileInfoFactory:        info,
		CreateFolderFactory:       createFolder,
		GetFileContentsFactory:    contents,
		PutFileContentsFactory:    putContents,
		GetFileURLFactory:         fileURL,
		GetPublicFileURLFactory:   GetPublicFileURLFactory{dav: dav},
		CopyFilesFactory:          CopyFilesFactory{dav: dav},
		MoveFilesFactory:          MoveFilesFactory{dav: dav},
		DeleteFileFactory:         DeleteFileFactory{dav: dav},
		RestoreFileFactory:        RestoreFileFactory{dav: dav},
		ListFileVersionsFactory:   ListFileVersionsFactory{dav: dav},
		RestoreFileVersionFactory: RestoreFileVersionFactory{dav: dav},
		ClearTrashBinFactory:      ClearTrashBinFactory{dav: dav},
		SearchFactory:             SearchFactory{dav: dav},
		ListFavoriteFilesFactory:  ListFavoriteFilesFactory{dav: dav, opts: opts},
		SetFavoriteFactory:        SetFavoriteFactory{dav: dav},
		transport:                 dav,
	}
}

// DAV returns the shared transport.
func (w *WebDAV) DAV() *DAV {
	return w.transport
}

// Blobs returns the store behind blob: URLs.
func (w *WebDAV) Blobs() *BlobStore {
	return w.GetFileURLFactory.blobs
}
