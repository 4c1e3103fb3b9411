// Package drive normalizes Google Drive share links into directly viewable
// image URLs. The automation webhook frequently returns Drive-hosted results.
package drive

import (
	"net/url"
	"regexp"
	"strings"
)

var filePathPattern = regexp.MustCompile(`/file/d/([^/]+)`)

// ID extracts the file identifier from a Drive-hosted URL. The second return
// is false for non-Drive URLs and Drive URLs without a recognizable id.
func ID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if !strings.Contains(u.Hostname(), "drive.google.com") {
		return "", false
	}
	if m := filePathPattern.FindStringSubmatch(u.Path); len(m) == 2 && m[1] != "" {
		return m[1], true
	}
	if id := u.Query().Get("id"); id != "" {
		return id, true
	}
	return "", false
}

// NormalizeURL rewrites a Drive share link into its direct-view form. Any
// other URL is returned unmodified.
func NormalizeURL(rawURL string) string {
	id, ok := ID(rawURL)
	if !ok {
		return rawURL
	}
	return "https://drive.google.com/uc?export=view&id=" + id
}

// PreviewURL is the embeddable preview endpoint for a Drive file id, used as
// a fallback when the direct-view URL refuses to render inline.
func PreviewURL(id string) string {
	return "https://drive.google.com/file/d/" + id + "/preview"
}
