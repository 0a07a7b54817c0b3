// Package horosafe guards file paths supplied by remote callers.
package horosafe

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
)

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// SafePath joins userInput under base and returns the cleaned path, or
// ErrPathTraversal when the result would leave base. Absolute inputs are
// taken relative to base.
func SafePath(base, userInput string) (string, error) {
	if slices.Contains(strings.Split(filepath.ToSlash(userInput), "/"), "..") {
		return "", ErrPathTraversal
	}
	root := filepath.Clean(base)
	cleaned := filepath.Join(root, filepath.Clean("/"+userInput))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}
