package rest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileImageResolver resolves stored image references against a media
// directory on disk. References that escape the root or do not exist
// resolve to "not found".
type FileImageResolver struct {
	root    string
	baseURL string
}

// NewFileImageResolver creates a resolver rooted at dir; resolved
// references are reported as baseURL-prefixed URIs.
func NewFileImageResolver(dir, baseURL string) *FileImageResolver {
	return &FileImageResolver{root: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (r *FileImageResolver) Resolve(ref string) (string, bool) {
	path, ok := r.safePath(ref)
	if !ok {
		return "", false
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", false
	}
	return fmt.Sprintf("%s/%s", r.baseURL, strings.TrimPrefix(ref, "/")), true
}

// Fetch loads the bytes behind a URI previously produced by Resolve
func (r *FileImageResolver) Fetch(uri string) ([]byte, error) {
	ref := strings.TrimPrefix(uri, r.baseURL)
	path, ok := r.safePath(ref)
	if !ok {
		return nil, fmt.Errorf("image reference %s outside media root", ref)
	}
	return os.ReadFile(path)
}

func (r *FileImageResolver) safePath(ref string) (string, bool) {
	path := filepath.Join(r.root, filepath.FromSlash(strings.TrimPrefix(ref, "/")))
	rel, err := filepath.Rel(r.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return path, true
}
