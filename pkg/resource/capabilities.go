package resource

import "strings"

// Permission flags as reported in the permissions property.
const (
	PermissionShared           = "S"
	PermissionShareable        = "R"
	PermissionMounted          = "M"
	PermissionDeletable        = "D"
	PermissionRenameable       = "N"
	PermissionMoveable         = "V"
	PermissionUpdateable       = "NV"
	PermissionFileUpdateable   = "W"
	PermissionFolderCreateable = "CK"
	PermissionDeny             = "Z"
	PermissionSecureView       = "X"
)

// Ability answers authorization questions evaluated outside the resource,
// e.g. whether the current user may create shares at all.
type Ability interface {
	Can(action, subject string) bool
}

func has(r Resource, flag string) bool {
	return strings.Contains(r.Permissions, flag)
}

// CanUpload reports whether files can be uploaded into r.
func CanUpload(r Resource) bool {
	return !IsTrashResource(r) && has(r, PermissionFolderCreateable)
}

// CanDownload reports whether r may be downloaded. Secure-view resources
// can only be displayed.
func CanDownload(r Resource) bool {
	return !IsTrashResource(r) && !has(r, PermissionSecureView)
}

// CanBeDeleted reports whether r may be deleted. Trash entries carry no
// permissions and are always deletable.
func CanBeDeleted(r Resource) bool {
	if IsTrashResource(r) {
		return true
	}
	return has(r, PermissionDeletable)
}

// CanBeRestored reports whether r can be restored from the trash bin.
func CanBeRestored(r Resource) bool {
	return IsTrashResource(r)
}

// CanRename reports whether r may be renamed.
func CanRename(r Resource) bool {
	return !IsTrashResource(r) && has(r, PermissionRenameable)
}

// CanShare reports whether r may be shared by a user with the given ability.
func CanShare(r Resource, ability Ability) bool {
	if IsTrashResource(r) || ability == nil {
		return false
	}
	return ability.Can("create-all", "Share") && has(r, PermissionShareable)
}

// CanCreate reports whether folders can be created inside r.
func CanCreate(r Resource) bool {
	return !IsTrashResource(r) && has(r, PermissionFolderCreateable)
}

// CanEditTags reports whether the tags of r may be changed.
func CanEditTags(r Resource) bool {
	if IsTrashResource(r) {
		return false
	}
	return has(r, PermissionUpdateable) || has(r, PermissionFileUpdateable)
}

// CanDeny reports whether access to r may be denied.
func CanDeny(r Resource) bool {
	return !IsTrashResource(r) && has(r, PermissionDeny)
}

// IsMounted reports whether r is a mount point.
func IsMounted(r Resource) bool {
	return !IsTrashResource(r) && has(r, PermissionMounted)
}

// IsReceivedShare reports whether r was shared with the current user.
func IsReceivedShare(r Resource) bool {
	return !IsTrashResource(r) && has(r, PermissionShared)
}

// IsShareRoot reports whether r is the root of a received share: it has a
// share root and sits directly below the share mount.
func IsShareRoot(r Resource) bool {
	if IsTrashResource(r) || r.RemoteItemPath == "" {
		return false
	}
	return len(strings.Split(r.WebDavPath, "/")) == 3
}
