package resource

import (
	"encoding/json"
	"reflect"
	"testing"
)

func fileEntry(filename string, props Props) RawEntry {
	return RawEntry{Filename: filename, Type: TypeFile, Props: props}
}

func TestBuildResourceStripsMountPrefix(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"/files/admin/docs/a.txt", "/docs/a.txt"},
		{"/spaces/s1!n1/docs/a.txt", "/docs/a.txt"},
		{"/spaces/s1!n1", "/"},
		{"/public-files/token/a.txt", "/public-files/token/a.txt"},
		{"relative/a.txt", "/relative/a.txt"},
	}
	for _, tt := range tests {
		r := BuildResource(fileEntry(tt.filename, nil), nil)
		if r.Path != tt.want {
			t.Errorf("path for %q = %q, want %q", tt.filename, r.Path, tt.want)
		}
		if r.WebDavPath != tt.filename {
			t.Errorf("webDavPath = %q, want %q", r.WebDavPath, tt.filename)
		}
	}
}

func TestBuildResourceFields(t *testing.T) {
	props := Props{
		"fileid":             TextValue("storage-1!node-1"),
		"file-parent":        TextValue("storage-1!root"),
		"getcontentlength":   TextValue("1024"),
		"getcontenttype":     TextValue("application/gzip"),
		"getetag":            TextValue(`"abc"`),
		"permissions":        TextValue("RDNVW"),
		"favorite":           TextValue("1"),
		"tags":               TextValue("a,,b,"),
		"owner-id":           TextValue("u1"),
		"owner-display-name": TextValue("Alice"),
	}
	r := BuildResource(fileEntry("/spaces/storage-1!node-1/backup.tar.gz", props), nil)

	if r.ID != "storage-1!node-1" || r.FileID != r.ID {
		t.Errorf("unexpected ids %q/%q", r.ID, r.FileID)
	}
	if r.StorageID != "storage-1" || r.NodeID() != "node-1" {
		t.Errorf("unexpected storage/node id %q/%q", r.StorageID, r.NodeID())
	}
	if r.Name != "backup.tar.gz" || r.Extension != "tar.gz" {
		t.Errorf("unexpected name/extension %q/%q", r.Name, r.Extension)
	}
	if r.Size != "1024" {
		t.Errorf("expected size 1024, got %q", r.Size)
	}
	if !r.Starred {
		t.Error("expected starred")
	}
	if !reflect.DeepEqual(r.Tags, []string{"a", "b"}) {
		t.Errorf("unexpected tags %v", r.Tags)
	}
	if r.Owner.DisplayName != "Alice" {
		t.Errorf("unexpected owner %+v", r.Owner)
	}
	if r.Type != TypeFile || r.IsFolder {
		t.Errorf("unexpected type %q", r.Type)
	}
	if r.Variant != VariantResource {
		t.Errorf("unexpected variant %q", r.Variant)
	}
}

func TestBuildResourceFolder(t *testing.T) {
	raw := RawEntry{
		Filename: "/spaces/s!n/archive.tar.gz",
		Type:     TypeDirectory,
		Props: Props{
			"size":             TextValue("4096"),
			"getcontentlength": TextValue("1"),
		},
	}
	r := BuildResource(raw, nil)
	if r.Extension != "" {
		t.Errorf("folders never have an extension, got %q", r.Extension)
	}
	if !r.IsFolder || r.Type != TypeFolder {
		t.Errorf("expected folder, got %q", r.Type)
	}
	if r.Size != "4096" {
		t.Errorf("folder size should come from size prop, got %q", r.Size)
	}
}

func TestBuildResourceDefaults(t *testing.T) {
	r := BuildResource(fileEntry("/files/admin/readme", nil), nil)
	if r.Size != "0" {
		t.Errorf("expected size 0, got %q", r.Size)
	}
	if r.Starred || r.Locked {
		t.Error("absent properties must yield false")
	}
	if r.ShareTypes == nil || len(r.ShareTypes) != 0 {
		t.Errorf("expected empty share types, got %v", r.ShareTypes)
	}
	if r.Extension != "" {
		t.Errorf("expected no extension, got %q", r.Extension)
	}
	if r.Name != "readme" {
		t.Errorf("expected name from filename, got %q", r.Name)
	}
}

func TestBuildResourceShareTypes(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		props := Props{"share-types": {Children: map[string][]Value{"share-type": {TextValue("5")}}}}
		r := BuildResource(fileEntry("/spaces/s!n/a", props), nil)
		if !reflect.DeepEqual(r.ShareTypes, []int{5}) {
			t.Errorf("expected [5], got %v", r.ShareTypes)
		}
	})
	t.Run("bare text", func(t *testing.T) {
		props := Props{"share-types": TextValue("5")}
		r := BuildResource(fileEntry("/spaces/s!n/a", props), nil)
		if !reflect.DeepEqual(r.ShareTypes, []int{5}) {
			t.Errorf("expected [5], got %v", r.ShareTypes)
		}
	})
	t.Run("list", func(t *testing.T) {
		props := Props{"share-types": {Children: map[string][]Value{
			"share-type": {TextValue("0"), TextValue("3")},
		}}}
		r := BuildResource(fileEntry("/spaces/s!n/a", props), nil)
		if !reflect.DeepEqual(r.ShareTypes, []int{0, 3}) {
			t.Errorf("expected [0 3], got %v", r.ShareTypes)
		}
	})
}

func TestBuildResourceLock(t *testing.T) {
	props := Props{
		"lockdiscovery": {Children: map[string][]Value{
			"activelock": {{Children: map[string][]Value{
				"owner":    {{Children: map[string][]Value{"href": {TextValue("bob")}}}},
				"locktime": {TextValue("2024-01-01T10:00:00Z")},
			}}},
		}},
	}
	r := BuildResource(fileEntry("/spaces/s!n/a.txt", props), nil)
	if !r.Locked {
		t.Fatal("expected locked")
	}
	if r.LockOwner != "bob" {
		t.Errorf("expected owner bob, got %q", r.LockOwner)
	}
	if r.LockTime != "2024-01-01T10:00:00Z" {
		t.Errorf("unexpected lock time %q", r.LockTime)
	}
}

func TestBuildResourceExtraProps(t *testing.T) {
	props := Props{
		"custom-color": TextValue("red"),
		"empty-one":    TextValue(""),
	}
	r := BuildResource(fileEntry("/spaces/s!n/a.txt", props), []string{"oc:custom-color", "oc:empty-one", "oc:missing"})
	if r.ExtraProps["oc:custom-color"] != "red" {
		t.Errorf("expected extra prop under full name, got %v", r.ExtraProps)
	}
	if _, ok := r.ExtraProps["oc:empty-one"]; ok {
		t.Error("empty extra props are skipped")
	}
	if _, ok := r.ExtraProps["oc:missing"]; ok {
		t.Error("missing extra props are skipped")
	}
}

func TestBuildResourceMediaFacets(t *testing.T) {
	props := Props{
		"audio": {Children: map[string][]Value{
			"album-artist": {TextValue("Band")},
			"BitRate":      {TextValue("320")},
		}},
		"photo": {Children: map[string][]Value{
			"exposure_time": {TextValue("0.01")},
		}},
	}
	r := BuildResource(fileEntry("/spaces/s!n/a.mp3", props), nil)
	if r.Audio["albumArtist"] != "Band" || r.Audio["bitRate"] != "320" {
		t.Errorf("unexpected audio facet %v", r.Audio)
	}
	if r.Photo["exposureTime"] != "0.01" {
		t.Errorf("unexpected photo facet %v", r.Photo)
	}
	if r.Image != nil {
		t.Errorf("expected nil image facet, got %v", r.Image)
	}
}

func TestBuildDeletedResource(t *testing.T) {
	raw := RawEntry{
		Filename: "/spaces/trash-bin/s!n/item-42",
		Type:     TypeFile,
		Props: Props{
			"trashbin-original-filename": TextValue("logs.tar.xz"),
			"trashbin-original-location": TextValue("old/logs.tar.xz"),
			"trashbin-delete-datetime":   TextValue("2024-02-02T00:00:00Z"),
		},
	}
	r := BuildDeletedResource(raw)
	if r.ID != "item-42" {
		t.Errorf("expected id item-42, got %q", r.ID)
	}
	if r.Name != "logs.tar.xz" || r.Extension != "tar.xz" {
		t.Errorf("unexpected name/extension %q/%q", r.Name, r.Extension)
	}
	if r.Path != "/old/logs.tar.xz" {
		t.Errorf("unexpected path %q", r.Path)
	}
	if r.DDate != "2024-02-02T00:00:00Z" {
		t.Errorf("unexpected ddate %q", r.DDate)
	}
	if r.WebDavPath != "" {
		t.Errorf("expected empty webDavPath, got %q", r.WebDavPath)
	}
	if !IsTrashResource(r) {
		t.Error("expected trash variant")
	}
}

func TestBuildSearchResource(t *testing.T) {
	props := Props{"highlights": TextValue("<mark>hit</mark>")}
	r := BuildSearchResource(fileEntry("/spaces/s!n/a.txt", props), nil)
	if !IsSearchResource(r) || r.Highlights != "<mark>hit</mark>" {
		t.Errorf("unexpected search resource %+v", r)
	}
}

func TestResourceSurvivesJSON(t *testing.T) {
	r := BuildResource(fileEntry("/spaces/s!n/a.txt", Props{"fileid": TextValue("s!n")}), nil)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back Resource
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.NodeID() != "n" || back.Path != "/a.txt" {
		t.Errorf("unexpected decoded resource %+v", back)
	}
}

func TestBuildResourceStarred(t *testing.T) {
	tests := []struct {
		name  string
		props Props
		want  bool
	}{
		{"absent", nil, false},
		{"empty", Props{"favorite": TextValue("")}, false},
		{"zero", Props{"favorite": TextValue("0")}, false},
		{"one", Props{"favorite": TextValue("1")}, true},
	}
	for _, tt := range tests {
		r := BuildResource(fileEntry("/files/admin/a.txt", tt.props), nil)
		if r.Starred != tt.want {
			t.Errorf("%s: starred = %v, want %v", tt.name, r.Starred, tt.want)
		}
	}
}
