// Package sandbox gates every request input before a prompt is built:
// path containment, suffix allow-listing, binary sniffing, and free-text
// sanitization. It is pure validation; nothing here spawns a process or
// writes to disk.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validation failures. The pipeline maps these onto its error taxonomy
// with errors.Is, so every failure below must stay a distinct sentinel.
var (
	// ErrEmptyPath is returned when the raw path is empty or blank.
	ErrEmptyPath = errors.New("path must be a non-empty string")

	// ErrPathTraversal is returned when the resolved path escapes the root.
	ErrPathTraversal = errors.New("path escapes the sandbox root")

	// ErrUnsupportedType is returned when the suffix is not allow-listed.
	ErrUnsupportedType = errors.New("file type is not allow-listed")

	// ErrNotAFile is returned when the path is missing or not a regular file.
	ErrNotAFile = errors.New("not a regular file")

	// ErrFileTooLarge is returned when the file exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file exceeds the size ceiling")

	// ErrBinaryContent is returned when the sampled prefix looks binary.
	ErrBinaryContent = errors.New("file contains binary content")
)

// ValidatePath resolves raw against root and returns an absolute, cleaned
// path guaranteed to sit inside root with an allow-listed suffix.
// Relative paths resolve against root; absolute paths are normalized as-is
// and still have to land inside root.
func ValidatePath(raw, root string, allowedSuffixes []string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyPath
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	absRoot = filepath.Clean(absRoot)

	var resolved string
	if filepath.IsAbs(raw) {
		resolved = filepath.Clean(raw)
	} else {
		resolved = filepath.Clean(filepath.Join(absRoot, raw))
	}

	// A plain prefix comparison would accept sibling escapes like
	// "/app/project-evil" for root "/app/project". The path must be the
	// root itself or continue with a separator.
	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, raw)
	}

	suffix := strings.ToLower(filepath.Ext(resolved))
	for _, allowed := range allowedSuffixes {
		if suffix == strings.ToLower(allowed) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, suffix)
}

// CheckFile verifies the validated path points at a regular file under the
// size ceiling. Existence, kind and size all come from one stat call.
func CheckFile(path string, maxSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotAFile, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, info.Size(), maxSize)
	}
	return nil
}
