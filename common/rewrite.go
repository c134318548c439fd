package common

import (
	"net/http"
	"strings"
)

// PathRewriter maps requests under a runtime-configurable public prefix onto
// a fixed internal prefix, so routes registered once can move at runtime.
// Requests that address the internal prefix directly are answered with 404.
func PathRewriter(next http.Handler, public func() string, internal string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == internal || strings.HasPrefix(path, internal+"/") {
			http.NotFound(w, r)
			return
		}

		if rest, ok := matchPrefix(path, public()); ok {
			r.URL.Path = internal + rest
			r.URL.RawPath = ""
		}

		next.ServeHTTP(w, r)
	})
}

// matchPrefix returns the remainder of path after "/"+segment, always
// starting with "/".
func matchPrefix(path, segment string) (string, bool) {
	segment = strings.Trim(segment, "/")
	if segment == "" {
		return "", false
	}
	base := "/" + segment
	switch {
	case path == base:
		return "/", true
	case strings.HasPrefix(path, base+"/"):
		return path[len(base):], true
	}
	return "", false
}
