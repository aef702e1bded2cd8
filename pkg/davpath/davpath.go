// Package davpath joins and encodes slash-separated WebDAV paths.
package davpath

import (
	"net/url"
	"strings"
)

// Options controls the slashes around a joined path.
type Options struct {
	LeadingSlash  bool
	TrailingSlash bool
}

// Join joins path parts with single slashes. A leading slash is kept when the
// first non-empty part starts with one.
func Join(parts ...string) string {
	leading := false
	for _, p := range parts {
		if p == "" {
			continue
		}
		leading = strings.HasPrefix(p, "/")
		break
	}
	return JoinWith(Options{LeadingSlash: leading}, parts...)
}

// JoinWith joins path parts with single slashes and applies opts.
func JoinWith(opts Options, parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			if s != "" {
				segments = append(segments, s)
			}
		}
	}
	joined := strings.Join(segments, "/")
	if opts.LeadingSlash {
		joined = "/" + joined
	}
	if opts.TrailingSlash && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

// Encode percent-encodes every segment of p, keeping the slashes.
func Encode(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Base returns the last non-empty segment of p.
func Base(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Dir returns p without its last segment. The root yields "/".
func Dir(p string) string {
	p = strings.TrimRight(p, "/")
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		if strings.HasPrefix(p, "/") {
			return "/"
		}
		return "."
	}
	return p[:i]
}

// IsDescendant reports whether p lies strictly below parent.
func IsDescendant(p, parent string) bool {
	parent = strings.TrimRight(parent, "/")
	return strings.HasPrefix(p, parent+"/") && len(p) > len(parent)+1
}
