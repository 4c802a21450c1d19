// Package pathresolver resolves slash-separated absolute paths against
// the container's metadata tree, the same walk original_source's
// PathResolver performs one component at a time from the root.
package pathresolver

import (
	"fmt"
	"strings"
)

const maxPathLength = 512

// EntryLookup is the subset of the metadata table a resolver needs.
// container.MetadataTable satisfies it.
type EntryLookup interface {
	ChildByName(parent uint32, name string) (uint32, bool)
}

// Resolve walks path's components from root, returning the metadata
// index of the final component. path must be absolute ("/").
// Resolve("/") returns root itself.
func Resolve(lookup EntryLookup, root uint32, path string) (uint32, error) {
	parts, err := split(path)
	if err != nil {
		return 0, err
	}

	idx := root
	for _, part := range parts {
		next, ok := lookup.ChildByName(idx, part)
		if !ok {
			return 0, fmt.Errorf("pathresolver.Resolve: %q not found", path)
		}
		idx = next
	}
	return idx, nil
}

// ResolveParent resolves path's parent directory and returns it
// alongside the final component's name, the common shape file/dir
// create and rename operations need.
func ResolveParent(lookup EntryLookup, root uint32, path string) (parentIndex uint32, name string, err error) {
	dir, base := Split(path)
	parentIndex, err = Resolve(lookup, root, dir)
	if err != nil {
		return 0, "", err
	}
	if base == "" {
		return 0, "", fmt.Errorf("pathresolver.ResolveParent: %q has no final component", path)
	}
	return parentIndex, base, nil
}

// ValidatePath enforces spec §4.7's syntax rules: must begin with
// "/", at most 512 characters, no NUL, no ".." anywhere, no "//"
// anywhere. A lone "." component is legal syntax — it is dropped
// during normalization, not rejected here.
func ValidatePath(path string) error {
	return validateSyntax(path)
}

func validateSyntax(path string) error {
	if path == "" {
		return fmt.Errorf("pathresolver: empty path")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("pathresolver: path %q is not absolute", path)
	}
	if len(path) > maxPathLength {
		return fmt.Errorf("pathresolver: path exceeds %d characters", maxPathLength)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("pathresolver: path %q contains a NUL byte", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("pathresolver: path %q contains \"..\"", path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("pathresolver: path %q contains \"//\"", path)
	}
	return nil
}

// split validates path, then breaks it into non-empty, non-"."
// components.
func split(path string) ([]string, error) {
	if err := validateSyntax(path); err != nil {
		return nil, err
	}

	raw := strings.Split(path, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p == "" || p == "." {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Normalize rewrites path into its canonical form: a leading slash,
// single separators, "." segments dropped, no trailing slash (except
// for root itself).
func Normalize(path string) (string, error) {
	parts, err := split(path)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(parts, "/"), nil
}

// Split divides path into its directory and final-component name,
// mirroring the standard library's path.Split but operating on the
// container's own absolute-path grammar. Split("/") returns ("/", "").
func Split(path string) (dir, name string) {
	parts, err := split(path)
	if err != nil || len(parts) == 0 {
		return "/", ""
	}
	name = parts[len(parts)-1]
	if len(parts) == 1 {
		return "/", name
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), name
}

// Combine joins a directory and a single path component into an
// absolute path.
func Combine(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
