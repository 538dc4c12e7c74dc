package loader

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	httpPrefix     = regexp.MustCompile(`(?i)^https?://`)
	absoluteURL    = regexp.MustCompile(`(?i)^(https?:)?//`)
	dataURIPattern = regexp.MustCompile(`(?is)^data:.*,.*$`)
	blobURL        = regexp.MustCompile(`(?i)^blob:`)
)

// resolveURL resolves a relative URI against path. Absolute, protocol-relative, data and blob
// URIs are returned unchanged, and a root-relative URI is joined with the origin of an http(s) path.
//
// Parameters:
//   - uri: the URI from the document
//   - path: the base URL, ending in "/" or empty
//
// Returns:
//   - string: the resolved URL
func resolveURL(uri, path string) string {
	if uri == "" {
		return ""
	}

	if httpPrefix.MatchString(path) && strings.HasPrefix(uri, "/") && !strings.HasPrefix(uri, "//") {
		if u, err := url.Parse(path); err == nil {
			return u.Scheme + "://" + u.Host + uri
		}
	}

	if absoluteURL.MatchString(uri) || dataURIPattern.MatchString(uri) || blobURL.MatchString(uri) {
		return uri
	}
	if strings.HasPrefix(uri, "/") && !httpPrefix.MatchString(path) {
		return uri
	}
	return path + uri
}

// extractURLBase returns everything up to and including the last "/" of rawURL, or "./".
func extractURLBase(rawURL string) string {
	i := strings.LastIndexByte(rawURL, '/')
	if i < 0 {
		return "./"
	}
	return rawURL[:i+1]
}

// isDataImageURI reports whether uri is an inline image.
func isDataImageURI(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "data:image/")
}
