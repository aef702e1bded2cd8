package resource

import (
	"encoding/xml"
	"strings"
)

// XML namespaces used by the storage backend.
const (
	NamespaceDAV      = "DAV:"
	NamespaceOwnCloud = "http://owncloud.org/ns"
)

// Property is a well-known WebDAV property understood by the normalizer.
type Property int

const (
	PropFileID Property = iota
	PropFileParent
	PropName
	PropOwnerID
	PropOwnerDisplayName
	PropPrivateLink
	PropContentLength
	PropContentSize
	PropLastModifiedDate
	PropTags
	PropAudio
	PropLocation
	PropImage
	PropPhoto
	PropETag
	PropMimeType
	PropResourceType
	PropLockDiscovery
	PropActiveLock
	PropLockOwner
	PropLockTime
	PropDownloadURL
	PropHighlights
	PropMetaPathForUser
	PropRemoteItemID
	PropHasPreview
	PropShareRoot
	PropShareTypes
	PropShareType
	PropPermissions
	PropIsFavorite
	PropTrashbinOriginalFilename
	PropTrashbinOriginalLocation
	PropTrashbinDeletedDate
)

var propertyNames = map[Property]xml.Name{
	PropFileID:                   {Space: NamespaceOwnCloud, Local: "fileid"},
	PropFileParent:               {Space: NamespaceOwnCloud, Local: "file-parent"},
	PropName:                     {Space: NamespaceOwnCloud, Local: "name"},
	PropOwnerID:                  {Space: NamespaceOwnCloud, Local: "owner-id"},
	PropOwnerDisplayName:         {Space: NamespaceOwnCloud, Local: "owner-display-name"},
	PropPrivateLink:              {Space: NamespaceOwnCloud, Local: "privatelink"},
	PropContentLength:            {Space: NamespaceDAV, Local: "getcontentlength"},
	PropContentSize:              {Space: NamespaceOwnCloud, Local: "size"},
	PropLastModifiedDate:         {Space: NamespaceDAV, Local: "getlastmodified"},
	PropTags:                     {Space: NamespaceOwnCloud, Local: "tags"},
	PropAudio:                    {Space: NamespaceOwnCloud, Local: "audio"},
	PropLocation:                 {Space: NamespaceOwnCloud, Local: "location"},
	PropImage:                    {Space: NamespaceOwnCloud, Local: "image"},
	PropPhoto:                    {Space: NamespaceOwnCloud, Local: "photo"},
	PropETag:                     {Space: NamespaceDAV, Local: "getetag"},
	PropMimeType:                 {Space: NamespaceDAV, Local: "getcontenttype"},
	PropResourceType:             {Space: NamespaceDAV, Local: "resourcetype"},
	PropLockDiscovery:            {Space: NamespaceDAV, Local: "lockdiscovery"},
	PropActiveLock:               {Space: NamespaceDAV, Local: "activelock"},
	PropLockOwner:                {Space: NamespaceDAV, Local: "owner"},
	PropLockTime:                 {Space: NamespaceDAV, Local: "locktime"},
	PropDownloadURL:              {Space: NamespaceOwnCloud, Local: "downloadURL"},
	PropHighlights:               {Space: NamespaceOwnCloud, Local: "highlights"},
	PropMetaPathForUser:          {Space: NamespaceOwnCloud, Local: "meta-path-for-user"},
	PropRemoteItemID:             {Space: NamespaceOwnCloud, Local: "remote-item-id"},
	PropHasPreview:               {Space: NamespaceOwnCloud, Local: "has-preview"},
	PropShareRoot:                {Space: NamespaceOwnCloud, Local: "shareroot"},
	PropShareTypes:               {Space: NamespaceOwnCloud, Local: "share-types"},
	PropShareType:                {Space: NamespaceOwnCloud, Local: "share-type"},
	PropPermissions:              {Space: NamespaceOwnCloud, Local: "permissions"},
	PropIsFavorite:               {Space: NamespaceOwnCloud, Local: "favorite"},
	PropTrashbinOriginalFilename: {Space: NamespaceOwnCloud, Local: "trashbin-original-filename"},
	PropTrashbinOriginalLocation: {Space: NamespaceOwnCloud, Local: "trashbin-original-location"},
	PropTrashbinDeletedDate:      {Space: NamespaceOwnCloud, Local: "trashbin-delete-datetime"},
}

// XMLName returns the namespaced element name of p.
func (p Property) XMLName() xml.Name {
	return propertyNames[p]
}

// Local returns the element name of p without its namespace.
func (p Property) Local() string {
	return propertyNames[p].Local
}

func (p Property) String() string {
	return p.Local()
}

// DefaultProperties is requested when listing a folder.
var DefaultProperties = []Property{
	PropPermissions,
	PropIsFavorite,
	PropFileID,
	PropFileParent,
	PropName,
	PropLockDiscovery,
	PropOwnerID,
	PropOwnerDisplayName,
	PropRemoteItemID,
	PropShareRoot,
	PropShareTypes,
	PropPrivateLink,
	PropContentLength,
	PropContentSize,
	PropLastModifiedDate,
	PropETag,
	PropMimeType,
	PropResourceType,
	PropDownloadURL,
	PropTags,
	PropAudio,
	PropLocation,
	PropImage,
	PropPhoto,
	PropHasPreview,
}

// TrashProperties is requested when listing a trash bin.
var TrashProperties = []Property{
	PropContentLength,
	PropResourceType,
	PropTrashbinOriginalLocation,
	PropTrashbinOriginalFilename,
	PropTrashbinDeletedDate,
	PropPermissions,
	PropFileParent,
}

// PublicLinkProperties is requested when listing a public link.
var PublicLinkProperties = []Property{
	PropPermissions,
	PropFileID,
	PropName,
	PropContentLength,
	PropContentSize,
	PropLastModifiedDate,
	PropETag,
	PropMimeType,
	PropResourceType,
	PropDownloadURL,
}

// Value is a decoded property value. Leaf values carry Text, structured
// values carry their child elements keyed by local name.
type Value struct {
	Text     string             `json:"text,omitempty"`
	Children map[string][]Value `json:"children,omitempty"`
}

// TextValue returns a leaf value.
func TextValue(s string) Value {
	return Value{Text: s}
}

// Empty reports whether v carries neither text nor children.
func (v Value) Empty() bool {
	return v.Text == "" && len(v.Children) == 0
}

// Child returns the first child element with the given local name.
func (v Value) Child(local string) (Value, bool) {
	vs := v.Children[local]
	if len(vs) == 0 {
		return Value{}, false
	}
	return vs[0], true
}

// All returns every child element with the given local name.
func (v Value) All(local string) []Value {
	return v.Children[local]
}

// FlatText returns v's text, or the text of its first descendant that has
// any. A lock owner is either plain text or wrapped in an href element.
func (v Value) FlatText() string {
	if v.Text != "" {
		return v.Text
	}
	for _, vs := range v.Children {
		for _, c := range vs {
			if t := c.FlatText(); t != "" {
				return t
			}
		}
	}
	return ""
}

// Interface converts v into plain Go values: a string for leaves and a map
// for structured values. Repeated children become slices.
func (v Value) Interface() any {
	if len(v.Children) == 0 {
		return v.Text
	}
	m := make(map[string]any, len(v.Children))
	for k, vs := range v.Children {
		m[k] = interfaceOf(vs)
	}
	return m
}

func interfaceOf(vs []Value) any {
	if len(vs) == 1 {
		return vs[0].Interface()
	}
	out := make([]any, len(vs))
	for i, c := range vs {
		out[i] = c.Interface()
	}
	return out
}

// Props is a property bag keyed by local element name. The namespace is not
// part of the key, matching how the multistatus decoder stores properties.
type Props map[string]Value

// Get returns the value of a well-known property.
func (p Props) Get(prop Property) (Value, bool) {
	return p.Lookup(prop.Local())
}

// Text returns the text of a well-known property, or "".
func (p Props) Text(prop Property) string {
	v, _ := p.Get(prop)
	return v.Text
}

// Has reports whether a well-known property is present and non-empty.
func (p Props) Has(prop Property) bool {
	v, ok := p.Get(prop)
	return ok && !v.Empty()
}

// Lookup returns a property by local name. A namespace prefix such as
// "oc:" is ignored.
func (p Props) Lookup(name string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p[localName(name)]
	return v, ok
}

func localName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}
