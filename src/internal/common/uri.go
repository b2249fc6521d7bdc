package common

import (
	"runtime"
	"strings"

	"go.lsp.dev/uri"
)

// URIToFilePath converts a file:// URI to a filesystem path.
func URIToFilePath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}

	path := strings.TrimPrefix(uri, "file://")

	// On Windows, file URIs look like file:///C:/path/to/file.
	// After removing file://, we have /C:/path/to/file and must drop
	// the leading slash for absolute drive paths.
	if runtime.GOOS == "windows" && len(path) > 2 {
		if path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
	}

	return path
}

// FilePathToURI converts a filesystem path to a file:// URI.
func FilePathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return string(uri.File(path))
}

// IsDomainForgeDocument reports whether the URI names a .sea document.
func IsDomainForgeDocument(uri string) bool {
	return strings.HasSuffix(strings.ToLower(uri), ".sea")
}
