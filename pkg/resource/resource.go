// Package resource normalizes WebDAV property bags into Resource values.
package resource

// Raw resource types reported by the multistatus decoder.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeFolder    = "folder"
)

// Variant distinguishes plain, trash and search resources.
type Variant string

const (
	VariantResource Variant = "resource"
	VariantTrash    Variant = "trash"
	VariantSearch   Variant = "search"
)

// RawEntry is one response item of a multistatus document.
type RawEntry struct {
	// Filename is the transport path relative to the DAV root,
	// e.g. /spaces/<id>/docs/a.txt.
	Filename string
	// Type is TypeFile or TypeDirectory.
	Type  string
	Props Props
	// Processing is set by callers that know the server is still
	// post-processing the upload.
	Processing bool
}

// Owner identifies the owner of a resource.
type Owner struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Resource is the canonical representation of a file-system entry.
type Resource struct {
	ID             string `json:"id"`
	FileID         string `json:"fileId"`
	StorageID      string `json:"storageId"`
	ParentFolderID string `json:"parentFolderId,omitempty"`

	Name       string  `json:"name"`
	Extension  string  `json:"extension"`
	Path       string  `json:"path"`
	WebDavPath string  `json:"webDavPath"`
	Type       string  `json:"type"`
	IsFolder   bool    `json:"isFolder"`
	Variant    Variant `json:"variant"`

	MimeType    string `json:"mimeType,omitempty"`
	Size        string `json:"size,omitempty"`
	MDate       string `json:"mdate,omitempty"`
	ETag        string `json:"etag,omitempty"`
	Permissions string `json:"permissions"`
	Starred     bool   `json:"starred"`
	Processing  bool   `json:"processing"`

	Locked    bool   `json:"locked"`
	LockOwner string `json:"lockOwner,omitempty"`
	LockTime  string `json:"lockTime,omitempty"`

	ShareTypes     []int    `json:"shareTypes"`
	Tags           []string `json:"tags"`
	Owner          Owner    `json:"owner"`
	PrivateLink    string   `json:"privateLink,omitempty"`
	DownloadURL    string   `json:"downloadURL,omitempty"`
	RemoteItemID   string   `json:"remoteItemId,omitempty"`
	RemoteItemPath string   `json:"remoteItemPath,omitempty"`

	Audio    map[string]any `json:"audio,omitempty"`
	Location map[string]any `json:"location,omitempty"`
	Image    map[string]any `json:"image,omitempty"`
	Photo    map[string]any `json:"photo,omitempty"`

	ExtraProps map[string]any `json:"extraProps,omitempty"`

	// DDate is the deletion date of trash resources.
	DDate string `json:"ddate,omitempty"`
	// Highlights holds search match highlights of search resources.
	Highlights string `json:"highlights,omitempty"`
}

// NodeID returns the node part of the resource id.
func (r Resource) NodeID() string {
	return ExtractNodeID(r.ID)
}

// Space is a storage container hosting resources.
type Space struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	DriveType       string `json:"driveType,omitempty"`
	DriveAlias      string `json:"driveAlias,omitempty"`
	WebDavPath      string `json:"webDavPath"`
	WebDavTrashPath string `json:"webDavTrashPath,omitempty"`
	// PublicLinkPassword authenticates access to password protected
	// public link spaces.
	PublicLinkPassword string `json:"publicLinkPassword,omitempty"`
}

// Drive types with special handling.
const (
	DriveTypePersonal = "personal"
	DriveTypeProject  = "project"
	DriveTypePublic   = "public"
)

// NewSpace returns a space with the standard DAV paths for id.
func NewSpace(id, name, driveType string) Space {
	return Space{
		ID:              id,
		Name:            name,
		DriveType:       driveType,
		WebDavPath:      "/spaces/" + id,
		WebDavTrashPath: "/spaces/trash-bin/" + id,
	}
}

// NewPublicSpace returns the space of a public link token.
func NewPublicSpace(token, password string) Space {
	return Space{
		ID:                 token,
		DriveType:          DriveTypePublic,
		WebDavPath:         "/public-files/" + token,
		PublicLinkPassword: password,
	}
}

// IsPublic reports whether s is a public link space.
func (s Space) IsPublic() bool {
	return s.DriveType == DriveTypePublic
}
