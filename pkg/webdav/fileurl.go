package webdav

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/webclient/internal/logging"
	"github.com/fruitsalade/webclient/internal/metrics"
	"github.com/fruitsalade/webclient/pkg/davpath"
	"github.com/fruitsalade/webclient/pkg/ocs"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// Disposition selects how a file URL is meant to be consumed.
type Disposition string

const (
	DispositionAttachment Disposition = "attachment"
	DispositionInline     Disposition = "inline"
)

const defaultSignURLTimeout = 86400 * time.Second

// FileURLOptions controls GetFileURL.
type FileURLOptions struct {
	// Disposition defaults to attachment.
	Disposition         Disposition
	IsURLSigningEnabled bool
	// SignURLTimeout is the validity of a signed URL. Default 86400s.
	SignURLTimeout time.Duration
	// Version selects a previous version of the file.
	Version string
	// DoHeadRequest checks that the file exists before signing.
	DoHeadRequest bool
}

// GetFileURLFactory hands out consumable file URLs.
type GetFileURLFactory struct {
	dav      *DAV
	contents GetFileContentsFactory
	ocs      *ocs.Client
	blobs    *BlobStore
	opts     Options
}

// GetFileURL returns a URL from which r can be fetched. Resources with a
// download URL are returned as is. Otherwise the DAV URL is signed when
// signing is enabled and a user is signed in. Unsigned and inline URLs are
// served from downloaded content behind a blob: URL.
func (f GetFileURLFactory) GetFileURL(ctx context.Context, space resource.Space, r resource.Resource, opts FileURLOptions) (string, error) {
	if opts.Disposition == "" {
		opts.Disposition = DispositionAttachment
	}
	if opts.SignURLTimeout <= 0 {
		opts.SignURLTimeout = defaultSignURLTimeout
	}
	inline := opts.Disposition == DispositionInline
	downloadURL := r.DownloadURL

	signed := true
	if downloadURL == "" && !inline {
		downloadURL = f.unsignedURL(space, r, opts.Version)
		signed = f.sign(ctx, space, &downloadURL, opts)
	}

	if !signed || inline {
		contents, err := f.contents.GetFileContents(ctx, space, r.Path, GetFileContentsOptions{})
		if err != nil {
			return "", err
		}
		metrics.RecordFileURL(metrics.URLBlob)
		return f.blobs.CreateObjectURL(contents.Body, contents.ContentType), nil
	}

	if r.DownloadURL != "" {
		metrics.RecordFileURL(metrics.URLDirect)
	} else {
		metrics.RecordFileURL(metrics.URLSigned)
	}
	return downloadURL, nil
}

func (f GetFileURLFactory) unsignedURL(space resource.Space, r resource.Resource, version string) string {
	if version != "" {
		return f.dav.FileURL(davpath.Join("meta", r.FileID, "v", version))
	}
	if space.WebDavPath == "" {
		return f.dav.FileURL(r.WebDavPath)
	}
	return f.dav.FileURL(davpath.Join(space.WebDavPath, r.Path))
}

// sign replaces *u with a signed URL and reports whether it did. Failures
// are logged and leave the URL unsigned.
func (f GetFileURLFactory) sign(ctx context.Context, space resource.Space, u *string, opts FileURLOptions) bool {
	user := f.opts.user()
	if user != nil && opts.DoHeadRequest {
		if err := f.dav.Head(ctx, *u, &space); err != nil {
			logging.Warn("file preflight failed, falling back to content",
				zap.String("url", *u),
				zap.Error(err),
			)
			return false
		}
	}

	if !opts.IsURLSigningEnabled || user == nil {
		return false
	}

	signedURL, err := f.ocs.SignURL(ctx, *u, user.Username, opts.SignURLTimeout)
	if err != nil {
		logging.Warn("url signing failed, falling back to content",
			zap.String("url", *u),
			zap.Error(err),
		)
		return false
	}
	*u = signedURL
	return true
}

// RevokeURL releases a blob: URL returned by GetFileURL. Other URLs are
// left alone.
func (f GetFileURLFactory) RevokeURL(url string) {
	if url == "" || !strings.HasPrefix(url, BlobPrefix) {
		return
	}
	f.blobs.RevokeObjectURL(url)
}

// GetPublicFileURLFactory builds URLs of public link resources.
type GetPublicFileURLFactory struct {
	dav *DAV
}

// GetPublicFileURL returns the DAV URL of r inside a public link space.
func (f GetPublicFileURLFactory) GetPublicFileURL(space resource.Space, r resource.Resource) string {
	return f.dav.FileURL(davpath.Join(space.WebDavPath, r.Path))
}
