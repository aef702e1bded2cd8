package webdav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	xwebdav "golang.org/x/net/webdav"

	"github.com/fruitsalade/webclient/pkg/resource"
)

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Prop   propList `xml:"DAV: prop"`
	Status string   `xml:"DAV: status"`
}

type propList struct {
	Props []xwebdav.Property `xml:",any"`
}

// ok reports whether the propstat carries found properties.
func (p propstat) ok() bool {
	return p.Status == "" || strings.Contains(p.Status, " 200")
}

// decodeMultistatus turns a multistatus document into raw entries.
// Properties reported as not found are dropped.
func (d *DAV) decodeMultistatus(r io.Reader) ([]resource.RawEntry, error) {
	var ms multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}

	entries := make([]resource.RawEntry, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		filename, err := d.hrefToPath(resp.Href)
		if err != nil {
			return nil, err
		}
		entry := resource.RawEntry{
			Filename: filename,
			Type:     resource.TypeFile,
			Props:    resource.Props{},
		}
		for _, ps := range resp.Propstats {
			if !ps.ok() {
				continue
			}
			for _, prop := range ps.Prop.Props {
				v, err := decodeValue(prop.InnerXML)
				if err != nil {
					return nil, fmt.Errorf("decode property %s: %w", prop.XMLName.Local, err)
				}
				entry.Props[prop.XMLName.Local] = v
			}
		}
		if rt, ok := entry.Props.Get(resource.PropResourceType); ok {
			if _, isCollection := rt.Child("collection"); isCollection {
				entry.Type = resource.TypeDirectory
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// hrefToPath strips the DAV endpoint prefix and trailing slash from href
// and decodes it.
func (d *DAV) hrefToPath(href string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	p := strings.TrimPrefix(u.Path, d.davPrefix)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		p = "/"
	}
	return p, nil
}

// decodeValue parses the inner XML of a property into a Value tree.
func decodeValue(inner []byte) (resource.Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(inner))
	return readValue(dec)
}

func readValue(dec *xml.Decoder) (resource.Value, error) {
	var v resource.Value
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return v, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readValue(dec)
			if err != nil {
				return v, err
			}
			if v.Children == nil {
				v.Children = make(map[string][]resource.Value)
			}
			v.Children[t.Name.Local] = append(v.Children[t.Name.Local], child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			v.Text = strings.TrimSpace(text.String())
			return v, nil
		}
	}
	v.Text = strings.TrimSpace(text.String())
	return v, nil
}

const (
	prefixDAV      = "d"
	prefixOwnCloud = "oc"
)

// propElement renders the empty element of a property for a request body.
func propElement(name xml.Name) string {
	prefix := prefixOwnCloud
	if name.Space == resource.NamespaceDAV {
		prefix = prefixDAV
	}
	return "<" + prefix + ":" + name.Local + " />"
}

func extraElement(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return "<" + prefixOwnCloud + ":" + name + " />"
}

func propBlock(props []resource.Property, extra []string) string {
	var b strings.Builder
	b.WriteString("<d:prop>")
	for _, p := range props {
		b.WriteString(propElement(p.XMLName()))
	}
	for _, name := range extra {
		b.WriteString(extraElement(name))
	}
	b.WriteString("</d:prop>")
	return b.String()
}

const xmlNamespaces = `xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns"`

func propfindBody(props []resource.Property, extra []string) ([]byte, error) {
	if len(props) == 0 && len(extra) == 0 {
		return []byte(`<?xml version="1.0"?><d:propfind ` + xmlNamespaces + `><d:allprop /></d:propfind>`), nil
	}
	return []byte(`<?xml version="1.0"?><d:propfind ` + xmlNamespaces + `>` + propBlock(props, extra) + `</d:propfind>`), nil
}

// proppatchBody renders a propertyupdate document setting every property
// in props to its text value.
func proppatchBody(props map[resource.Property]string) ([]byte, error) {
	keys := make([]resource.Property, 0, len(props))
	for p := range props {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	set := make([]xwebdav.Property, 0, len(keys))
	for _, p := range keys {
		var inner bytes.Buffer
		if err := xml.EscapeText(&inner, []byte(props[p])); err != nil {
			return nil, err
		}
		set = append(set, xwebdav.Property{XMLName: p.XMLName(), InnerXML: inner.Bytes()})
	}

	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0"?><d:propertyupdate ` + xmlNamespaces + `><d:set><d:prop>`)
	for _, p := range set {
		out, err := xml.Marshal(p)
		if err != nil {
			return nil, err
		}
		b.Write(out)
	}
	b.WriteString(`</d:prop></d:set></d:propertyupdate>`)
	return b.Bytes(), nil
}
