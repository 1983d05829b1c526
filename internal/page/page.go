// Package page substitutes the operator's GitHub username into the static
// landing page.
//
// Substitution is plain byte replacement of a placeholder token. Every
// occurrence is replaced and every other byte is left as it was, so the
// page's markup, encoding and line endings survive untouched.
package page

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPlaceholder is the token the landing page ships with.
const DefaultPlaceholder = "YOUR_USERNAME"

// Result reports what ApplyFile did.
type Result struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
}

// Changed reports whether the file was rewritten.
func (r *Result) Changed() bool {
	return r.Replacements > 0
}

// Substitute replaces every occurrence of placeholder in content with value
// and returns the new content and the number of replacements. content is
// not modified.
func Substitute(content []byte, placeholder, value string) ([]byte, int) {
	if placeholder == "" {
		return bytes.Clone(content), 0
	}
	n := bytes.Count(content, []byte(placeholder))
	if n == 0 {
		return bytes.Clone(content), 0
	}
	return bytes.ReplaceAll(content, []byte(placeholder), []byte(value)), n
}

// ApplyFile substitutes inside the file at path. The write goes to a temp
// file in the same directory that is renamed over the original, so a crash
// never leaves a half-written page. A file without the placeholder is left
// untouched, which makes repeated runs no-ops.
func ApplyFile(path, placeholder, value string) (*Result, error) {
	if placeholder == "" {
		return nil, fmt.Errorf("placeholder must not be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	out, n := Substitute(content, placeholder, value)
	result := &Result{Path: path, Replacements: n}
	if n == 0 {
		return result, nil
	}

	if err := writeAtomic(path, out, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("failed to write page: %w", err)
	}
	return result, nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// CandidateURLs returns the addresses the service may be published at,
// in the order the landing page lists them.
func CandidateURLs(username, repo string) []string {
	return []string{
		fmt.Sprintf("https://%s.github.io/%s/", username, repo),
		fmt.Sprintf("https://%s-%s.streamlit.app", username, repo),
		fmt.Sprintf("https://%s-production.up.railway.app", repo),
		fmt.Sprintf("https://%s.onrender.com", repo),
	}
}
