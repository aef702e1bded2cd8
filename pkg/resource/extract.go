package resource

import (
	"path"
	"regexp"
	"strings"
)

// complexExtensions are multi-part extensions preferred over the last dot
// segment of a file name.
var complexExtensions = map[string]bool{
	"tar.bz2": true,
	"tar.gz":  true,
	"tar.xz":  true,
}

var domSelectorPattern = regexp.MustCompile(`[^A-Za-z0-9\-_]`)

func extractIDSegment(id string, index int) string {
	if !strings.Contains(id, "!") {
		return ""
	}
	parts := strings.Split(id, "!")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}

// ExtractStorageID returns the storage part of a "storageId!nodeId" id.
func ExtractStorageID(id string) string {
	return extractIDSegment(id, 0)
}

// ExtractNodeID returns the node part of a "storageId!nodeId" id.
func ExtractNodeID(id string) string {
	return extractIDSegment(id, 1)
}

// ExtractExtensionFromFile returns the extension of a file name. Folders
// have none. Known multi-part extensions such as tar.gz are returned whole.
func ExtractExtensionFromFile(name string, isFolder bool) string {
	if isFolder {
		return ""
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		for i := range parts {
			candidate := strings.Join(parts[i:], ".")
			if complexExtensions[candidate] {
				return candidate
			}
		}
	}
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// ExtractNameWithoutExtension returns the resource name minus its extension.
func ExtractNameWithoutExtension(r Resource) string {
	if r.Extension == "" {
		return r.Name
	}
	i := strings.LastIndex(r.Name, "."+r.Extension)
	if i < 0 {
		return r.Name
	}
	return r.Name[:i]
}

// ExtractParentFolderName returns the name of the folder containing r, or
// "" for resources at the space root.
func ExtractParentFolderName(r Resource) string {
	dir := path.Dir(r.Path)
	if dir == "/" || dir == "." {
		return ""
	}
	return path.Base(dir)
}

// ExtractDomSelector strips every character that is not safe in an element id.
func ExtractDomSelector(s string) string {
	return domSelectorPattern.ReplaceAllString(s, "")
}

// IsTrashResource reports whether r was built from a trash bin entry.
func IsTrashResource(r Resource) bool {
	return r.Variant == VariantTrash
}

// IsSearchResource reports whether r was built from a search result.
func IsSearchResource(r Resource) bool {
	return r.Variant == VariantSearch
}
