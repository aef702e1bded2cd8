package resource

import (
	"strconv"
	"strings"

	"github.com/fruitsalade/webclient/pkg/davpath"
)

// mountPrefixes are transport roots whose first three path segments are
// the server mount prefix.
var mountPrefixes = []string{"/files", "/space"}

// BuildResource converts a raw multistatus entry into a Resource. Each
// name in extraPropNames is looked up without its namespace prefix and, if
// present, stored in ExtraProps under the full requested name.
func BuildResource(raw RawEntry, extraPropNames []string) Resource {
	name := raw.Props.Text(PropName)
	if name == "" {
		name = davpath.Base(raw.Filename)
	}
	id := raw.Props.Text(PropFileID)
	isFolder := raw.Type == TypeDirectory

	r := Resource{
		ID:             id,
		FileID:         id,
		StorageID:      ExtractStorageID(id),
		ParentFolderID: raw.Props.Text(PropFileParent),
		MimeType:       raw.Props.Text(PropMimeType),
		Name:           name,
		Extension:      ExtractExtensionFromFile(name, isFolder),
		Path:           resourcePath(raw.Filename),
		WebDavPath:     raw.Filename,
		Type:           raw.Type,
		IsFolder:       isFolder,
		Variant:        VariantResource,
		Processing:     raw.Processing,
		MDate:          raw.Props.Text(PropLastModifiedDate),
		Permissions:    raw.Props.Text(PropPermissions),
		ETag:           raw.Props.Text(PropETag),
		ShareTypes:     shareTypes(raw.Props),
		PrivateLink:    raw.Props.Text(PropPrivateLink),
		DownloadURL:    raw.Props.Text(PropDownloadURL),
		RemoteItemID:   raw.Props.Text(PropRemoteItemID),
		RemoteItemPath: raw.Props.Text(PropShareRoot),
		Owner: Owner{
			ID:          raw.Props.Text(PropOwnerID),
			DisplayName: raw.Props.Text(PropOwnerDisplayName),
		},
		Tags:     splitTags(raw.Props.Text(PropTags)),
		Audio:    camelCaseFacet(raw.Props, PropAudio),
		Location: camelCaseFacet(raw.Props, PropLocation),
		Image:    camelCaseFacet(raw.Props, PropImage),
		Photo:    camelCaseFacet(raw.Props, PropPhoto),
	}
	if isFolder {
		r.Type = TypeFolder
		r.Size = sizeOrZero(raw.Props.Text(PropContentSize))
	} else {
		r.Size = sizeOrZero(raw.Props.Text(PropContentLength))
	}

	// A missing favorite property means not starred.
	if fav, ok := raw.Props.Get(PropIsFavorite); ok {
		r.Starred = fav.Text != "" && fav.Text != "0"
	}

	if lock, ok := raw.Props.Get(PropLockDiscovery); ok {
		if active, ok := lock.Child(PropActiveLock.Local()); ok {
			r.Locked = true
			if owner, ok := active.Child(PropLockOwner.Local()); ok {
				r.LockOwner = owner.FlatText()
			}
			if lockTime, ok := active.Child(PropLockTime.Local()); ok {
				r.LockTime = lockTime.FlatText()
			}
		}
	}

	if len(extraPropNames) > 0 {
		r.ExtraProps = make(map[string]any, len(extraPropNames))
		for _, propName := range extraPropNames {
			if v, ok := raw.Props.Lookup(propName); ok && !v.Empty() {
				r.ExtraProps[propName] = v.Interface()
			}
		}
	}

	return r
}

// BuildDeletedResource converts a trash bin entry. Name and extension come
// from the original filename and the path from the original location.
func BuildDeletedResource(raw RawEntry) Resource {
	isFolder := raw.Type == TypeDirectory
	fullName := raw.Props.Text(PropTrashbinOriginalFilename)
	id := davpath.Base(raw.Filename)

	r := Resource{
		ID:             id,
		FileID:         id,
		StorageID:      ExtractStorageID(id),
		Type:           raw.Type,
		IsFolder:       isFolder,
		Variant:        VariantTrash,
		DDate:          raw.Props.Text(PropTrashbinDeletedDate),
		Name:           davpath.Base(fullName),
		Extension:      ExtractExtensionFromFile(fullName, isFolder),
		Path:           davpath.JoinWith(davpath.Options{LeadingSlash: true}, raw.Props.Text(PropTrashbinOriginalLocation)),
		ParentFolderID: raw.Props.Text(PropFileParent),
		Size:           sizeOrZero(raw.Props.Text(PropContentLength)),
		ShareTypes:     []int{},
		Tags:           []string{},
	}
	if isFolder {
		r.Type = TypeFolder
	}
	return r
}

// BuildSearchResource converts a search report entry.
func BuildSearchResource(raw RawEntry, extraPropNames []string) Resource {
	r := BuildResource(raw, extraPropNames)
	r.Variant = VariantSearch
	if v, ok := raw.Props.Get(PropHighlights); ok {
		r.Highlights = v.FlatText()
	}
	return r
}

// resourcePath strips the mount prefix from a transport path and
// guarantees a leading slash.
func resourcePath(filename string) string {
	p := filename
	for _, prefix := range mountPrefixes {
		if strings.HasPrefix(filename, prefix) {
			segments := strings.Split(filename, "/")
			if len(segments) > 3 {
				p = strings.Join(segments[3:], "/")
			} else {
				p = ""
			}
			break
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// shareTypes always yields a list, even when the server sent a bare value.
func shareTypes(props Props) []int {
	types := []int{}
	v, ok := props.Get(PropShareTypes)
	if !ok {
		return types
	}
	values := v.All(PropShareType.Local())
	if len(values) == 0 && v.Text != "" {
		values = []Value{v}
	}
	for _, st := range values {
		n, err := strconv.Atoi(strings.TrimSpace(st.Text))
		if err != nil {
			continue
		}
		types = append(types, n)
	}
	return types
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func sizeOrZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func camelCaseFacet(props Props, prop Property) map[string]any {
	v, ok := props.Get(prop)
	if !ok || len(v.Children) == 0 {
		return nil
	}
	m := make(map[string]any, len(v.Children))
	for k, vs := range v.Children {
		m[camelCase(k)] = interfaceOf(vs)
	}
	return m
}
